package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)
