// Package native detects whether the host toolchain can provide SystemTap
// USDT probing support.
//
// Detection never panics and never aborts the run on its own: the outcome is
// a value, and the caller decides whether an unavailable stack degrades the
// build or fails it.
package native

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tracegen/tracegen/internal/buildinfo"
)

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

func execRunner(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

// Options tunes the detection. The zero value detects against the real host.
type Options struct {
	// CC overrides compiler lookup.
	CC string

	// Dynamic asks for dynamic linking against libstapsdt instead of the
	// default static linking.
	Dynamic bool

	// IncludeDir and LibDir are extra search paths for the probing library.
	IncludeDir string
	LibDir     string

	// GOOS and GOARCH override the platform gate. Empty means the host.
	GOOS   string
	GOARCH string

	// Run and LookPath are swapped out in tests.
	Run      Runner
	LookPath func(file string) (string, error)
}

// FromEnv builds Options from the recognized environment overrides:
// CC, TRACEGEN_DYNAMIC, TRACEGEN_INCLUDE_DIR and TRACEGEN_LIB_DIR.
func FromEnv() Options {
	_, dynamic := os.LookupEnv("TRACEGEN_DYNAMIC")
	return Options{
		CC:         os.Getenv("CC"),
		Dynamic:    dynamic,
		IncludeDir: os.Getenv("TRACEGEN_INCLUDE_DIR"),
		LibDir:     os.Getenv("TRACEGEN_LIB_DIR"),
	}
}

// Detection is the outcome of a capability probe.
type Detection struct {
	Available  bool
	CC         string
	SDTHeader  bool
	Libstapsdt bool
	Dynamic    bool
	Reason     string
	Links      []buildinfo.LinkInstruction
}

// Detect probes the host for USDT probing support: a C compiler, the
// <sys/sdt.h> header, and the libstapsdt probing library found either through
// pkg-config or by a direct link test.
func Detect(ctx context.Context, opts Options) Detection {
	if opts.Run == nil {
		opts.Run = execRunner
	}
	if opts.LookPath == nil {
		opts.LookPath = exec.LookPath
	}
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.GOARCH == "" {
		opts.GOARCH = runtime.GOARCH
	}

	var det Detection
	det.Dynamic = opts.Dynamic

	if !platformSupported(opts.GOOS, opts.GOARCH) {
		det.Reason = fmt.Sprintf("USDT probing is only supported on linux/amd64, not %s/%s", opts.GOOS, opts.GOARCH)
		return det
	}

	cc, err := findCompiler(opts)
	if err != nil {
		det.Reason = err.Error()
		return det
	}
	det.CC = cc

	det.SDTHeader = compileProbe(ctx, opts, cc, sdtHeaderProgram, nil)
	if !det.SDTHeader {
		det.Reason = "<sys/sdt.h> is not available (install systemtap-sdt-dev or equivalent)"
		return det
	}

	// pkg-config is unlikely to know about libstapsdt since the library's own
	// packages do not register it, but it does not hurt to try.
	if links, err := pkgConfig(ctx, opts, "libstapsdt"); err == nil {
		det.Libstapsdt = true
		det.Available = true
		det.Links = links
		return det
	}

	if linkProbe(ctx, opts, cc) {
		det.Libstapsdt = true
		det.Available = true
		det.Links = defaultLinks(opts)
		return det
	}

	det.Reason = "libstapsdt cannot be linked (set TRACEGEN_LIB_DIR or install libstapsdt)"
	return det
}

// platformSupported gates the stap-usdt implementation to 64-bit Intel Linux,
// the only platform libstapsdt ships assembly for.
func platformSupported(goos, goarch string) bool {
	return goos == "linux" && goarch == "amd64"
}

func findCompiler(opts Options) (string, error) {
	candidates := []string{opts.CC, "cc", "gcc", "clang"}

	var tried []string
	for _, name := range candidates {
		if name == "" {
			continue
		}
		if path, err := opts.LookPath(name); err == nil {
			return path, nil
		}
		tried = append(tried, name)
	}

	return "", fmt.Errorf("no C compiler found on PATH (tried %s)", strings.Join(tried, ", "))
}

const sdtHeaderProgram = `#include <sys/sdt.h>
int main(void) { DTRACE_PROBE(tracegen_detect, present); return 0; }
`

const linkTestProgram = `void *providerInit(const char *name);
int main(void) { return providerInit("tracegen_detect") == 0; }
`

// compileProbe compiles a throwaway program, discarding the object. A nil
// extra slice means compile-only, otherwise the flags are appended and the
// program is linked.
func compileProbe(ctx context.Context, opts Options, cc, program string, extra []string) bool {
	dir, err := os.MkdirTemp("", "tracegen-detect-*")
	if err != nil {
		return false
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "probe.c")
	if err := os.WriteFile(src, []byte(program), 0o644); err != nil {
		return false
	}

	args := []string{"-o", filepath.Join(dir, "probe.out")}
	if opts.IncludeDir != "" {
		args = append(args, "-I"+opts.IncludeDir)
	}
	if extra == nil {
		args = append(args, "-c")
	}
	args = append(args, src)
	args = append(args, extra...)

	_, err = opts.Run(ctx, cc, args...)
	return err == nil
}

// linkProbe checks whether a program referencing a libstapsdt symbol links
// against the system default or override paths.
func linkProbe(ctx context.Context, opts Options, cc string) bool {
	extra := []string{"-lstapsdt", "-lelf", "-ldl"}
	if opts.LibDir != "" {
		extra = append([]string{"-L" + opts.LibDir}, extra...)
	}

	return compileProbe(ctx, opts, cc, linkTestProgram, extra)
}

// defaultLinks is the link set used when libstapsdt was found by a direct
// link test rather than through pkg-config.
func defaultLinks(opts Options) []buildinfo.LinkInstruction {
	var links []buildinfo.LinkInstruction
	if opts.IncludeDir != "" {
		links = append(links, buildinfo.LinkInstruction{Kind: buildinfo.LinkIncludePath, Value: opts.IncludeDir})
	}
	if opts.LibDir != "" {
		links = append(links, buildinfo.LinkInstruction{Kind: buildinfo.LinkSearchPath, Value: opts.LibDir})
	}

	kind := buildinfo.LinkStaticSupportLib
	if opts.Dynamic {
		kind = buildinfo.LinkDynamicSupportLib
	}
	for _, lib := range []string{"stapsdt", "elf"} {
		links = append(links, buildinfo.LinkInstruction{Kind: kind, Value: lib})
	}

	// In the static case dependencies are resolved now, so libdl must come
	// along; the dynamic case resolves it at runtime.
	links = append(links, buildinfo.LinkInstruction{Kind: buildinfo.LinkDynamicSupportLib, Value: "dl"})

	return links
}

// pkgConfig asks pkg-config about a package and converts its flags into link
// instructions.
func pkgConfig(ctx context.Context, opts Options, pkg string) ([]buildinfo.LinkInstruction, error) {
	args := []string{"--cflags", "--libs"}
	if !opts.Dynamic {
		args = append(args, "--static")
	}
	args = append(args, pkg)

	out, err := opts.Run(ctx, "pkg-config", args...)
	if err != nil {
		return nil, fmt.Errorf("pkg-config %s: %w", pkg, err)
	}

	return parsePkgConfigFlags(out, opts.Dynamic), nil
}

// parsePkgConfigFlags converts pkg-config output tokens into link
// instructions. Unknown tokens are skipped.
func parsePkgConfigFlags(out string, dynamic bool) []buildinfo.LinkInstruction {
	libKind := buildinfo.LinkStaticSupportLib
	if dynamic {
		libKind = buildinfo.LinkDynamicSupportLib
	}

	var links []buildinfo.LinkInstruction
	for _, tok := range strings.Fields(out) {
		switch {
		case strings.HasPrefix(tok, "-I") && len(tok) > 2:
			links = append(links, buildinfo.LinkInstruction{Kind: buildinfo.LinkIncludePath, Value: tok[2:]})
		case strings.HasPrefix(tok, "-L") && len(tok) > 2:
			links = append(links, buildinfo.LinkInstruction{Kind: buildinfo.LinkSearchPath, Value: tok[2:]})
		case strings.HasPrefix(tok, "-l") && len(tok) > 2:
			links = append(links, buildinfo.LinkInstruction{Kind: libKind, Value: tok[2:]})
		}
	}

	return links
}
