package repository

import (
	"errors"
	"sync"

	"gorm.io/gorm"
)

// ErrFactoryNotInitialized is returned before InitializeFactory ran
var ErrFactoryNotInitialized = errors.New("repository factory not initialized")

var (
	globalMu    sync.RWMutex
	globalRepos *Repositories
)

// InitializeFactory builds the process wide repositories on db. Later
// calls keep the first set.
func InitializeFactory(db *gorm.DB) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalRepos == nil {
		globalRepos = NewRepositories(db)
	}
}

// GetGlobalRepositories returns the repositories of InitializeFactory.
// It panics when called first.
func GetGlobalRepositories() *Repositories {
	repos, err := GlobalRepositories()
	if err != nil {
		panic(err)
	}
	return repos
}

// GlobalRepositories is GetGlobalRepositories without the panic
func GlobalRepositories() (*Repositories, error) {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalRepos == nil {
		return nil, ErrFactoryNotInitialized
	}
	return globalRepos, nil
}
