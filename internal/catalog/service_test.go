package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bookstore-backend/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *Repository) {
	t.Helper()
	client := dbtest.Client(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo, NewCategoryRepository(client.DB()), client, nil)
	require.NoError(t, err)
	return svc, repo
}

func sampleInput(isbn string) BookInput {
	desc := "A novel"
	return BookInput{
		Title:       "  Dune ",
		Author:      "Frank Herbert",
		ISBN:        isbn,
		Price:       decimal.RequireFromString("19.999"),
		Description: &desc,
	}
}

func TestCreateAndGetBook(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, sampleInput("978-0441013593"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "Dune", created.Title)
	assert.True(t, created.Price.Equal(decimal.RequireFromString("20.00")), "price rounded to cents, got %s", created.Price)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ISBN, got.ISBN)
	require.NotNil(t, got.Description)
	assert.Equal(t, "A novel", *got.Description)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), BookInput{Price: decimal.NewFromInt(-1)})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details := typed.Details().(map[string]string)
	assert.Contains(t, details, "title")
	assert.Contains(t, details, "author")
	assert.Contains(t, details, "isbn")
	assert.Contains(t, details, "price")
}

func TestCreateRejectsDuplicateISBN(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, sampleInput("isbn-1"))
	require.NoError(t, err)

	_, err = svc.Create(ctx, sampleInput("isbn-1"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestUpdateReplacesFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, sampleInput("isbn-2"))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, BookInput{
		Title:  "Dune Messiah",
		Author: "Frank Herbert",
		ISBN:   "isbn-2",
		Price:  decimal.NewFromInt(25),
	})
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", updated.Title)
	assert.Nil(t, updated.Description)
	assert.True(t, updated.Price.Equal(decimal.NewFromInt(25)))

	_, err = svc.Update(ctx, uuid.New(), sampleInput("isbn-3"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteTombstonesBook(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, sampleInput("isbn-4"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, created.ID))

	_, err = svc.Get(ctx, created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	exists, err := repo.BookExists(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.True(t, pkgerrors.IsCode(svc.Delete(ctx, created.ID), pkgerrors.CodeNotFound))

	// tombstoned isbn can be reused
	_, err = svc.Create(ctx, sampleInput("isbn-4"))
	require.NoError(t, err)
}

func TestLookup(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, sampleInput("isbn-5"))
	require.NoError(t, err)

	var lookup Lookup = repo
	exists, err := lookup.BookExists(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	price, err := lookup.BookPrice(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("20")))

	title, err := lookup.BookTitle(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", title)

	missing := uuid.New()
	_, err = lookup.BookPrice(ctx, missing)
	assert.True(t, IsNotFound(err))

	titles, err := lookup.BookTitles(ctx, []uuid.UUID{created.ID, missing})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]string{created.ID: "Dune"}, titles)
}
