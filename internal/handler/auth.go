package handler

import (
    "context"      // provides context with cancellation for DB calls
    "database/sql" // SQL database interactions
    "errors"       // error classification
    "net/http"     // HTTP status codes and primitives
    "strings"      // string manipulation utilities
    "time"         // token expiry times

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing
    "go.uber.org/zap"             // structured log fields

    "github.com/iliyamo/phillboard/internal/config"     // app configuration
    "github.com/iliyamo/phillboard/internal/logger"     // zap logger
    "github.com/iliyamo/phillboard/internal/model"      // roles
    "github.com/iliyamo/phillboard/internal/repository" // DB repositories
    "github.com/iliyamo/phillboard/internal/utils"      // helper functions (hashing, token issuing)
)

const maxUsernameLength = 64

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
    Cfg      config.Config
    Users    *repository.UserRepo
    Tokens   *repository.TokenRepo
    Balances *repository.BalanceRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, b *repository.BalanceRepo) *AuthHandler {
    if u == nil || t == nil || b == nil {
        panic("nil repository passed to NewAuthHandler")
    }
    return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Balances: b}
}

// ----- DTOs -----

type registerReq struct {
    Email    string `json:"email"`
    Username string `json:"username"`
    Password string `json:"password"`
}
type loginReq struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}
type refreshReq struct {
    RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}
type userPart struct {
    ID       uint64 `json:"id"`
    Email    string `json:"email"`
    Username string `json:"username"`
    Role     string `json:"role"`
}
type authResp struct {
    User    userPart  `json:"user"`
    Balance string    `json:"balance,omitempty"`
    Access  tokenPart `json:"access"`
    Refresh tokenPart `json:"refresh"`
}

// issuePair signs an access token and stores a fresh refresh token.
func (h *AuthHandler) issuePair(ctx context.Context, u userPart) (tokenPart, tokenPart, error) {
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, utils.Claims{UserID: u.ID, Username: u.Username, Role: u.Role}, h.Cfg.AccessTTLMin)
    if err != nil {
        return tokenPart{}, tokenPart{}, err
    }
    refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
    if err != nil {
        return tokenPart{}, tokenPart{}, err
    }
    if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
        return tokenPart{}, tokenPart{}, err
    }
    // the raw refresh token goes back to the client; only its hash is stored
    return tokenPart{Token: access.Token, Expires: access.Exp}, tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, nil
}

// Register creates the user and their starting balance in one
// transaction, then returns tokens immediately.  Every new account is a
// USER; admins are promoted in the database.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))
    req.Username = strings.TrimSpace(req.Username)
    if req.Email == "" || req.Password == "" || req.Username == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/username/password required"})
    }
    if len(req.Username) > maxUsernameLength {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "username too long"})
    }
    if err := utils.ValidatePassword(req.Password); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    tx, err := h.Users.DB().BeginTx(ctx, nil)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    uid, err := h.Users.CreateTx(ctx, tx, req.Email, req.Username, req.Password, model.RoleUser, h.Cfg.BcryptCost)
    if err != nil {
        switch {
        case errors.Is(err, repository.ErrEmailExists):
            return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
        case errors.Is(err, repository.ErrUsernameExists):
            return c.JSON(http.StatusConflict, echo.Map{"error": "username already exists"})
        }
        logger.ErrorCtx(ctx, err, zap.String("step", "create user"))
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
    }
    if err := h.Balances.ProvisionTx(ctx, tx, uid, h.Cfg.StartingBalance); err != nil {
        logger.ErrorCtx(ctx, err, zap.String("step", "provision balance"), zap.Uint64("user_id", uid))
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create balance failed"})
    }
    if err := tx.Commit(); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
    }
    committed = true

    user := userPart{ID: uid, Email: req.Email, Username: req.Username, Role: model.RoleUser}
    access, refresh, err := h.issuePair(ctx, user)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
    }
    return c.JSON(http.StatusCreated, authResp{
        User:    user,
        Balance: h.Cfg.StartingBalance.StringFixed(2),
        Access:  access,
        Refresh: refresh,
    })
}

// Login: verify and return new pair.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))
    if req.Email == "" || req.Password == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    u, err := h.Users.GetByEmail(ctx, req.Email)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
    }

    user := userPart{ID: u.ID, Email: u.Email, Username: u.Username, Role: u.Role}
    access, refresh, err := h.issuePair(ctx, user)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
    }
    return c.JSON(http.StatusOK, authResp{User: user, Access: access, Refresh: refresh})
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
    }
    hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    userID, err := h.Tokens.ValidateRefresh(ctx, hash)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
    }
    _ = h.Tokens.RevokeByHash(ctx, hash)

    u, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
    }
    user := userPart{ID: u.ID, Email: u.Email, Username: u.Username, Role: u.Role}
    access, refresh, err := h.issuePair(ctx, user)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
    }
    return c.JSON(http.StatusOK, authResp{User: user, Access: access, Refresh: refresh})
}

// RefreshAccess returns a new access token WITHOUT rotating the refresh
// token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
    }
    hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    userID, err := h.Tokens.ValidateRefresh(ctx, hash)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
    }
    u, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
    }
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, utils.Claims{UserID: u.ID, Username: u.Username, Role: u.Role}, h.Cfg.AccessTTLMin)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "access": tokenPart{Token: access.Token, Expires: access.Exp},
    })
}

// Logout revokes one session when a refresh_token is posted, or every
// session of the bearer when only an Authorization header is sent.  It
// does not sit behind JWTAuth so an expired access token cannot block
// logging out with a refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
    var uid uint64
    if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
        if claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer ")); err == nil {
            uid = claims.UserID
        }
    }

    // invalid JSON simply leaves the refresh token empty
    var req refreshReq
    _ = c.Bind(&req)
    refreshToken := strings.TrimSpace(req.RefreshToken)

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    if refreshToken != "" {
        hash := utils.HashRefreshRaw(refreshToken)
        if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
        }
        if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
        }
        return c.NoContent(http.StatusNoContent)
    }
    if uid != 0 {
        if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
        }
        return c.NoContent(http.StatusNoContent)
    }
    return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
}

// Me echoes the caller's token claims.
func (h *AuthHandler) Me(c echo.Context) error {
    return c.JSON(http.StatusOK, echo.Map{
        "user_id":  c.Get("user_id"),
        "username": c.Get("username"),
        "role":     c.Get("role"),
    })
}
