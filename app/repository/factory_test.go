package repository_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/productimages/app/repository"
)

func TestGlobalRepositoriesKeepFirstDatabase(t *testing.T) {
	repository.InitializeFactory(setupTestDB(t))
	first, err := repository.GlobalRepositories()
	require.NoError(t, err)
	require.NotNil(t, first.Image)

	repository.InitializeFactory(setupTestDB(t))
	assert.Same(t, first, repository.GetGlobalRepositories())
}
