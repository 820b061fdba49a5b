package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/productimages/app/models"
	"github.com/ManuelReschke/productimages/internal/pkg/env"
)

func TestDSN(t *testing.T) {
	prev := env.Env
	t.Cleanup(func() { env.Env = prev })
	env.Env = map[string]string{
		"DB_USER":     "shop",
		"DB_PASSWORD": "secret",
		"DB_HOST":     "db",
		"DB_NAME":     "images",
	}

	assert.Equal(t, "shop:secret@tcp(db:3306)/images?charset=utf8mb4&parseTime=True&loc=Local", DSN(false))
	assert.Equal(t, "shop:secret@tcp(db:3306)/images?multiStatements=true", DSN(true))
	assert.Equal(t, "shop@db:3306/images", Describe())
}

func TestOpenMemoryMigratesCatalog(t *testing.T) {
	db, err := OpenMemory(uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	assert.True(t, db.Migrator().HasTable(&models.ProductImage{}))
	assert.True(t, db.Migrator().HasTable(&models.ImageProduct{}))
	assert.True(t, db.Migrator().HasTable(&models.Item{}))
}
