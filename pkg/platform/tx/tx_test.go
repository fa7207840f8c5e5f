package tx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	assert.False(t, Active(ctx))
	assert.False(t, Active(WithTx(ctx, nil)), "nil transaction is not carried")

	tx := new(sql.Tx)
	got, ok := From(WithTx(ctx, tx))
	assert.True(t, ok)
	assert.Same(t, tx, got)
}
