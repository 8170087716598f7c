package economy_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/phillboard/internal/economy"
	"github.com/iliyamo/phillboard/internal/economy/economytest"
)

func TestProcessPayment_InsufficientFundsLeavesBalance(t *testing.T) {
	svc, store := newService(t)
	store.Seed(1, dec("3.50"))

	err := svc.ProcessPayment(context.Background(), 1, dec("4"))

	var funds *economy.InsufficientFundsError
	require.ErrorAs(t, err, &funds)
	assertMoney(t, "4", funds.Required)
	assertMoney(t, "3.50", funds.Available)
	assertMoney(t, "0.50", funds.Shortfall())
	assert.Contains(t, err.Error(), "$4.00")
	assertMoney(t, "3.50", store.Balance(1))
}

func TestProcessPayment_CumulativeEditCostsHaveNoDrift(t *testing.T) {
	svc, store := newService(t)
	store.Seed(1, dec("20"))

	for i := int64(0); i < 4; i++ {
		require.NoError(t, svc.ProcessPayment(context.Background(), 1, economy.EditCost(i)))
	}

	assertMoney(t, "5", store.Balance(1))
}

func TestProcessPayment_ExactBalanceIsAllowed(t *testing.T) {
	svc, store := newService(t)
	store.Seed(1, dec("1"))

	require.NoError(t, svc.ProcessPayment(context.Background(), 1, dec("1")))
	assertMoney(t, "0", store.Balance(1))
}

func TestProcessPayment_RejectsNonPositiveAmount(t *testing.T) {
	svc, store := newService(t)
	store.Seed(1, dec("10"))

	for _, amount := range []string{"0", "-1"} {
		err := svc.ProcessPayment(context.Background(), 1, dec(amount))
		var verr *economy.ValidationError
		assert.ErrorAs(t, err, &verr)
	}
	assertMoney(t, "10", store.Balance(1))
}

func TestProcessPayment_MissingBalanceIsStorageError(t *testing.T) {
	svc, _ := newService(t)

	err := svc.ProcessPayment(context.Background(), 42, dec("1"))

	var storageErr *economy.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.ErrorIs(t, err, economy.ErrBalanceNotFound)
}

func TestProcessPayment_StoreFailure(t *testing.T) {
	svc, store := newService(t)
	store.Seed(1, dec("10"))
	store.ErrDecrement = errors.New("connection refused")

	err := svc.ProcessPayment(context.Background(), 1, dec("1"))

	var storageErr *economy.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "debit balance", storageErr.Op)
	assertMoney(t, "10", store.Balance(1))
}

func TestProcessPayment_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	svc, store := newService(t)
	store.Seed(1, dec("10"))

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.ProcessPayment(context.Background(), 1, dec("1"))
			mu.Lock()
			defer mu.Unlock()
			var funds *economy.InsufficientFundsError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &funds):
				insufficient++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 30, insufficient)
	assertMoney(t, "0", store.Balance(1))
}

func TestPayOriginalCreator_NoOpForMissingOrSelf(t *testing.T) {
	svc, store := newService(t)
	store.Seed(1, dec("100"))
	// any store call would fail
	store.ErrAdd = errors.New("must not be called")

	res, err := svc.PayOriginalCreator(context.Background(), 0, 1, dec("8"))
	require.NoError(t, err)
	assert.False(t, res.Paid)

	res, err = svc.PayOriginalCreator(context.Background(), 1, 1, dec("8"))
	require.NoError(t, err)
	assert.False(t, res.Paid)

	assertMoney(t, "100", store.Balance(1))
}

func TestPayOriginalCreator_CreditsHalf(t *testing.T) {
	svc, store := newService(t)
	store.Seed(1, dec("300"))

	res, err := svc.PayOriginalCreator(context.Background(), 1, 2, dec("4"))

	require.NoError(t, err)
	assert.True(t, res.Paid)
	assertMoney(t, "2", res.Amount)
	assertMoney(t, "302", store.Balance(1))
}

func TestPayOriginalCreator_ShareAboveOneFallsBackToHalf(t *testing.T) {
	store := economytest.New()
	svc := economy.NewService(store, store, store, nil, economy.Config{CreatorShare: dec("2")})
	store.Seed(1, dec("300"))

	res, err := svc.PayOriginalCreator(context.Background(), 1, 2, dec("4"))

	require.NoError(t, err)
	assertMoney(t, "2", res.Amount)
	assertMoney(t, "302", store.Balance(1))
}

func TestPayOriginalCreator_ConcurrentCreditsAreAllApplied(t *testing.T) {
	svc, store := newService(t)
	store.Seed(1, dec("0"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(actor uint64) {
			defer wg.Done()
			_, err := svc.PayOriginalCreator(context.Background(), 1, actor, dec("1"))
			assert.NoError(t, err)
		}(uint64(i + 2))
	}
	wg.Wait()

	assertMoney(t, "25", store.Balance(1))
}

func TestPayOriginalCreator_FailureIsReturned(t *testing.T) {
	svc, store := newService(t)
	store.Seed(1, dec("5"))
	store.ErrAdd = errors.New("deadlock")

	res, err := svc.PayOriginalCreator(context.Background(), 1, 2, dec("2"))

	var storageErr *economy.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.False(t, res.Paid)
	assertMoney(t, "1", res.Amount)
	assertMoney(t, "5", store.Balance(1))
}

func TestBalance(t *testing.T) {
	svc, store := newService(t)
	store.Seed(1, dec("12.34"))

	bal, err := svc.Balance(context.Background(), 1)
	require.NoError(t, err)
	assertMoney(t, "12.34", bal)

	_, err = svc.Balance(context.Background(), 2)
	assert.ErrorIs(t, err, economy.ErrBalanceNotFound)
}

func TestSetBalance(t *testing.T) {
	svc, store := newService(t)
	admin := economy.Actor{UserID: 9, IsAdmin: true}

	err := svc.SetBalance(context.Background(), economy.Actor{UserID: 1}, 1, dec("10"))
	assert.ErrorIs(t, err, economy.ErrForbidden)

	var verr *economy.ValidationError
	err = svc.SetBalance(context.Background(), admin, 1, dec("-1"))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "balance", verr.Field)

	require.NoError(t, svc.SetBalance(context.Background(), admin, 1, dec("75.555")))
	assertMoney(t, "75.56", store.Balance(1))
}
