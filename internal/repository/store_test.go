package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"ibanbank/internal/domain"
	"ibanbank/internal/errors"
)

type StoreTestSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sql.DB
	store     *Store
}

func (suite *StoreTestSuite) SetupSuite() {
	suite.ctx = context.Background()

	container, err := postgres.Run(suite.ctx, "postgres:15-alpine",
		postgres.WithDatabase("ibanbank"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	suite.Require().NoError(err)
	suite.container = container

	connStr, err := container.ConnectionString(suite.ctx, "sslmode=disable")
	suite.Require().NoError(err)

	suite.db, err = sql.Open("postgres", connStr)
	suite.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	suite.Require().NoError(Migrate(suite.ctx, suite.db, logger))
	// Applying twice must be harmless.
	suite.Require().NoError(Migrate(suite.ctx, suite.db, logger))

	suite.store = NewStore(suite.db, logger)
}

func (suite *StoreTestSuite) TearDownSuite() {
	if suite.db != nil {
		suite.db.Close()
	}
	if suite.container != nil {
		testcontainers.TerminateContainer(suite.container)
	}
}

func (suite *StoreTestSuite) SetupTest() {
	_, err := suite.db.ExecContext(suite.ctx, `TRUNCATE transactions, accounts`)
	suite.Require().NoError(err)
}

func (suite *StoreTestSuite) newAccount(iban string) *domain.Account {
	account := &domain.Account{ID: uuid.New(), IBAN: iban, Balance: decimal.Zero}
	suite.Require().NoError(suite.store.Account().CreateAccount(suite.ctx, account))
	return account
}

func (suite *StoreTestSuite) balance(id uuid.UUID) decimal.Decimal {
	account, err := suite.store.Account().GetAccount(suite.ctx, id)
	suite.Require().NoError(err)
	return account.Balance
}

func (suite *StoreTestSuite) TestCreateAndGetAccount() {
	account := suite.newAccount("GB29NWBK60161331926819")

	got, err := suite.store.Account().GetAccount(suite.ctx, account.ID)
	suite.Require().NoError(err)
	suite.Equal("GB29NWBK60161331926819", got.IBAN)
	suite.True(got.Balance.IsZero())

	_, err = suite.store.Account().GetAccount(suite.ctx, uuid.New())
	suite.ErrorIs(err, errors.ErrAccountNotFound)
}

func (suite *StoreTestSuite) TestDuplicateIBAN() {
	suite.newAccount("GB29NWBK60161331926819")

	err := suite.store.Account().CreateAccount(suite.ctx, &domain.Account{ID: uuid.New(), IBAN: "GB29NWBK60161331926819"})
	suite.ErrorIs(err, errors.ErrDuplicateAccount)
}

func (suite *StoreTestSuite) TestAdjustBalanceCheckConstraint() {
	account := suite.newAccount("GB29NWBK60161331926819")

	suite.Require().NoError(suite.store.Account().AdjustBalance(suite.ctx, account.ID, decimal.RequireFromString("10.50")))
	suite.True(suite.balance(account.ID).Equal(decimal.RequireFromString("10.50")))

	err := suite.store.Account().AdjustBalance(suite.ctx, account.ID, decimal.RequireFromString("-10.51"))
	suite.ErrorIs(err, errors.ErrInsufficientFunds)
	suite.True(suite.balance(account.ID).Equal(decimal.RequireFromString("10.50")))

	err = suite.store.Account().AdjustBalance(suite.ctx, uuid.New(), decimal.NewFromInt(1))
	suite.ErrorIs(err, errors.ErrAccountNotFound)
}

func (suite *StoreTestSuite) TestWithTransactionRollsBack() {
	account := suite.newAccount("GB29NWBK60161331926819")
	boom := stderrors.New("boom")

	err := suite.store.WithTransaction(suite.ctx, func(tx domain.Store) error {
		if err := tx.Transaction().CreateTransaction(suite.ctx, &domain.Transaction{
			ID: uuid.New(), Type: domain.Deposit, Amount: decimal.NewFromInt(5), ToAccountID: &account.ID,
		}); err != nil {
			return err
		}
		if err := tx.Account().AdjustBalance(suite.ctx, account.ID, decimal.NewFromInt(5)); err != nil {
			return err
		}
		return boom
	})
	suite.ErrorIs(err, boom)

	suite.True(suite.balance(account.ID).IsZero())
	txs, err := suite.store.Transaction().ListTransactions(suite.ctx, &account.ID)
	suite.Require().NoError(err)
	suite.Empty(txs)
}

func (suite *StoreTestSuite) TestListTransactionsJoinsIBANs() {
	a := suite.newAccount("GB29NWBK60161331926819")
	b := suite.newAccount("DE89370400440532013000")
	c := suite.newAccount("NL91ABNA0417164300")

	deposit := &domain.Transaction{ID: uuid.New(), Type: domain.Deposit, Amount: decimal.NewFromInt(10), ToAccountID: &a.ID}
	transfer := &domain.Transaction{ID: uuid.New(), Type: domain.Transfer, Amount: decimal.RequireFromString("2.50"), FromAccountID: &a.ID, ToAccountID: &b.ID}
	other := &domain.Transaction{ID: uuid.New(), Type: domain.Deposit, Amount: decimal.NewFromInt(1), ToAccountID: &c.ID}
	for _, tx := range []*domain.Transaction{deposit, transfer, other} {
		suite.Require().NoError(suite.store.Transaction().CreateTransaction(suite.ctx, tx))
	}

	txs, err := suite.store.Transaction().ListTransactions(suite.ctx, &a.ID)
	suite.Require().NoError(err)
	suite.Require().Len(txs, 2)
	suite.Equal(transfer.ID, txs[0].ID)
	suite.Equal(domain.Transfer, txs[0].Type)
	suite.True(txs[0].Amount.Equal(decimal.RequireFromString("2.5")))
	suite.Equal("GB29NWBK60161331926819", txs[0].FromIBAN)
	suite.Equal("DE89370400440532013000", txs[0].ToIBAN)
	suite.Equal(deposit.ID, txs[1].ID)
	suite.Nil(txs[1].FromAccountID)
	suite.Empty(txs[1].FromIBAN)

	all, err := suite.store.Transaction().ListTransactions(suite.ctx, nil)
	suite.Require().NoError(err)
	suite.Len(all, 3)
}

func (suite *StoreTestSuite) TestCreatedAtMatchesStoredValue() {
	account := suite.newAccount("GB29NWBK60161331926819")
	tx := &domain.Transaction{ID: uuid.New(), Type: domain.Deposit, Amount: decimal.NewFromInt(1), ToAccountID: &account.ID}
	suite.Require().NoError(suite.store.Transaction().CreateTransaction(suite.ctx, tx))

	got, err := suite.store.Account().GetAccount(suite.ctx, account.ID)
	suite.Require().NoError(err)
	suite.True(got.CreatedAt.Equal(account.CreatedAt), "returned %s stored %s", account.CreatedAt, got.CreatedAt)

	txs, err := suite.store.Transaction().ListTransactions(suite.ctx, &account.ID)
	suite.Require().NoError(err)
	suite.Require().Len(txs, 1)
	suite.True(txs[0].CreatedAt.Equal(tx.CreatedAt), "returned %s stored %s", tx.CreatedAt, txs[0].CreatedAt)
}

func (suite *StoreTestSuite) TestNumericOverflowIsNotInternal() {
	account := suite.newAccount("GB29NWBK60161331926819")
	suite.Require().NoError(suite.store.Account().AdjustBalance(suite.ctx, account.ID, decimal.RequireFromString("999999999999999999.99")))

	err := suite.store.Account().AdjustBalance(suite.ctx, account.ID, decimal.RequireFromString("0.01"))
	suite.ErrorIs(err, errors.ErrBalanceLimitExceeded)
	suite.Equal("999999999999999999.99", suite.balance(account.ID).StringFixed(2))

	err = suite.store.Transaction().CreateTransaction(suite.ctx, &domain.Transaction{
		ID: uuid.New(), Type: domain.Deposit, Amount: domain.MoneyLimit, ToAccountID: &account.ID,
	})
	suite.ErrorIs(err, errors.ErrInvalidAmount)
}

func (suite *StoreTestSuite) TestWithSnapshotIsReadOnly() {
	account := suite.newAccount("GB29NWBK60161331926819")

	err := suite.store.WithSnapshot(suite.ctx, func(view domain.Store) error {
		got, err := view.Account().GetAccount(suite.ctx, account.ID)
		suite.Require().NoError(err)
		suite.True(got.Balance.IsZero())
		return view.Account().AdjustBalance(suite.ctx, account.ID, decimal.NewFromInt(5))
	})
	suite.Error(err)
	suite.True(suite.balance(account.ID).IsZero())
}

func TestStoreTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Postgres store tests in short mode")
	}
	suite.Run(t, new(StoreTestSuite))
}
