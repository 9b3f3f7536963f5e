package blob

import (
	"context"
	"fmt"
)

// Options selects and configures a driver.
type Options struct {
	Driver Driver
	Root   string // filesystem
	S3     S3Config
}

// Open constructs a Store for the configured driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverFilesystem, "":
		return NewFilesystem(opts.Root)
	case DriverS3:
		return NewS3(ctx, opts.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", opts.Driver)
	}
}
