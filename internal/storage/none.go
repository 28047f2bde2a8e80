package storage

import (
	"context"
	"time"
)

// noneStore descarta todo. Se usa cuando la sesión vive sólo en cookies.
type noneStore struct{}

func NewNone() Store { return noneStore{} }

func (noneStore) Get(context.Context, string) (string, error)              { return "", ErrNotFound }
func (noneStore) Set(context.Context, string, string, time.Duration) error { return nil }
func (noneStore) Delete(context.Context, string) error                     { return nil }
func (noneStore) Ping(context.Context) error                               { return nil }
func (noneStore) Close() error                                             { return nil }
