package utils

import "errors"

// ----------------- storage ------------------
var (
	ErrStorageEmptyHostName       = errors.New("host name is empty")
	ErrStorageInvalidPortNumber   = errors.New("port number is empty")
	ErrStorageEmptyUsername       = errors.New("username is empty")
	ErrStorageEmptyPassword       = errors.New("password is empty")
	ErrStorageInvalidDatabaseName = errors.New("database name is empty")
	ErrStorageInvalidSslMode      = errors.New("SSL mode is invalid")
	ErrStorageInvalidPoolSize     = errors.New("pool size is invalid")
	ErrStorageInvalidTimeout      = errors.New("timeout is invalid")
)

// ----------------- cache ------------------
var (
	ErrCacheMiss = errors.New("cache miss")
)

// ----------------- sync service ------------------
var (
	ErrAppNotFound        = errors.New("app not found")
	ErrCatalogNotFound    = errors.New("catalog not found")
	ErrInitialSyncPending = errors.New("initial sync not completed")
	ErrSyncDisabled       = errors.New("catalog sync is disabled for app")
	// ErrRunLocked - для приложения уже выполняется запуск синхронизации;
	// это нормальная ситуация, а не сбой
	ErrRunLocked = errors.New("sync run already in progress")
)
