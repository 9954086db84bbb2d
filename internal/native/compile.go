package native

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// BuildWrapperLib compiles a generated wrapper translation unit into a
// static library in the same directory, so the cgo stubs can link it. The
// unit contains an extern "C" block, so it goes through the C++ frontend.
func BuildWrapperLib(ctx context.Context, run Runner, cc, src, lib string, cflags []string) error {
	if run == nil {
		run = execRunner
	}

	dir := filepath.Dir(src)
	obj := strings.TrimSuffix(src, ".c") + ".o"

	args := []string{"-x", "c++", "-c", "-fPIC", "-o", obj}
	args = append(args, cflags...)
	args = append(args, src)
	if out, err := run(ctx, cc, args...); err != nil {
		return fmt.Errorf("compile %s: %w\n%s", src, err, out)
	}

	archive := filepath.Join(dir, "lib"+lib+".a")
	if out, err := run(ctx, "ar", "rcs", archive, obj); err != nil {
		return fmt.Errorf("archive %s: %w\n%s", archive, err, out)
	}

	return nil
}
