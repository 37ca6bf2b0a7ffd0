package cli

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"go.hackfix.me/dbshift/migration"
	"go.hackfix.me/dbshift/xtime"
)

// TargetMapper parses a target version, which is either "latest" or a
// non-negative integer. "latest" is decoded as migration.Latest.
type TargetMapper struct{}

var _ kong.Mapper = (*TargetMapper)(nil)

// Decode implements the kong.Mapper interface.
func (TargetMapper) Decode(kctx *kong.DecodeContext, target reflect.Value) error {
	var value string
	err := kctx.Scan.PopValueInto("target", &value)
	if err != nil {
		return err //nolint:wrapcheck // This is fine.
	}

	version := migration.Latest
	if !strings.EqualFold(value, "latest") {
		version, err = strconv.ParseInt(value, 10, 64)
		if err != nil || version < 0 {
			return fmt.Errorf("invalid target version '%s': expected 'latest' or a non-negative integer", value)
		}
	}

	target.SetInt(version)

	return nil
}

// DurationMapper parses durations with the extended units of
// xtime.ParseDuration, e.g. "30s" or "1d".
type DurationMapper struct{}

var _ kong.Mapper = (*DurationMapper)(nil)

// Decode implements the kong.Mapper interface.
func (DurationMapper) Decode(kctx *kong.DecodeContext, target reflect.Value) error {
	var value string
	err := kctx.Scan.PopValueInto("duration", &value)
	if err != nil {
		return err //nolint:wrapcheck // This is fine.
	}

	dur, err := xtime.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration '%s': %w", value, err)
	}
	if dur < 0 {
		return fmt.Errorf("invalid duration '%s': must not be negative", value)
	}

	target.Set(reflect.ValueOf(dur))

	return nil
}
