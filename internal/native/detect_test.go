package native

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracegen/tracegen/internal/buildinfo"
)

func TestPlatformSupported(t *testing.T) {
	tests := []struct {
		goos, goarch string
		want         bool
	}{
		{"linux", "amd64", true},
		{"linux", "arm64", false},
		{"darwin", "amd64", false},
		{"windows", "amd64", false},
	}

	for _, tt := range tests {
		if got := platformSupported(tt.goos, tt.goarch); got != tt.want {
			t.Errorf("platformSupported(%s, %s) = %v, want %v", tt.goos, tt.goarch, got, tt.want)
		}
	}
}

func TestParsePkgConfigFlags(t *testing.T) {
	out := "-I/usr/include/stapsdt -L/usr/lib/x86_64-linux-gnu -lstapsdt -lelf -pthread\n"

	static := parsePkgConfigFlags(out, false)
	assert.Equal(t, []buildinfo.LinkInstruction{
		{Kind: buildinfo.LinkIncludePath, Value: "/usr/include/stapsdt"},
		{Kind: buildinfo.LinkSearchPath, Value: "/usr/lib/x86_64-linux-gnu"},
		{Kind: buildinfo.LinkStaticSupportLib, Value: "stapsdt"},
		{Kind: buildinfo.LinkStaticSupportLib, Value: "elf"},
	}, static)

	dynamic := parsePkgConfigFlags(out, true)
	require.Len(t, dynamic, 4)
	assert.Equal(t, buildinfo.LinkDynamicSupportLib, dynamic[2].Kind)
}

// fakeToolchain simulates the host: which binaries exist, whether compile and
// link probes succeed, and whether pkg-config knows about libstapsdt.
type fakeToolchain struct {
	compilers    []string
	sdtHeader    bool
	pkgConfigOut string
	linkOK       bool

	commands [][]string
}

func (f *fakeToolchain) lookPath(file string) (string, error) {
	for _, c := range f.compilers {
		if c == file {
			return "/usr/bin/" + file, nil
		}
	}
	return "", errors.New("not found")
}

func (f *fakeToolchain) run(_ context.Context, name string, args ...string) (string, error) {
	f.commands = append(f.commands, append([]string{name}, args...))

	if name == "pkg-config" {
		if f.pkgConfigOut == "" {
			return "", errors.New("Package libstapsdt was not found")
		}
		return f.pkgConfigOut, nil
	}

	// A compiler invocation: compile-only probes carry -c, link probes carry
	// -lstapsdt.
	for _, a := range args {
		if a == "-lstapsdt" {
			if f.linkOK {
				return "", nil
			}
			return "ld: cannot find -lstapsdt", errors.New("exit status 1")
		}
	}
	if f.sdtHeader {
		return "", nil
	}
	return "fatal error: sys/sdt.h: No such file or directory", errors.New("exit status 1")
}

func (f *fakeToolchain) options() Options {
	return Options{
		GOOS:     "linux",
		GOARCH:   "amd64",
		Run:      f.run,
		LookPath: f.lookPath,
	}
}

func TestDetect(t *testing.T) {
	t.Run("unsupported platform", func(t *testing.T) {
		fake := &fakeToolchain{compilers: []string{"cc"}, sdtHeader: true, linkOK: true}
		opts := fake.options()
		opts.GOARCH = "arm64"

		det := Detect(context.Background(), opts)
		assert.False(t, det.Available)
		assert.Contains(t, det.Reason, "linux/amd64")
		assert.Empty(t, fake.commands, "nothing should run once the platform gate fails")
	})

	t.Run("no compiler", func(t *testing.T) {
		fake := &fakeToolchain{}
		det := Detect(context.Background(), fake.options())
		assert.False(t, det.Available)
		assert.Contains(t, det.Reason, "no C compiler")
		assert.Contains(t, det.Reason, "cc, gcc, clang")
	})

	t.Run("missing override is named in the reason", func(t *testing.T) {
		fake := &fakeToolchain{}
		opts := fake.options()
		opts.CC = "musl-gcc"

		det := Detect(context.Background(), opts)
		assert.False(t, det.Available)
		assert.Contains(t, det.Reason, "musl-gcc")
	})

	t.Run("missing sdt header", func(t *testing.T) {
		fake := &fakeToolchain{compilers: []string{"gcc"}}
		det := Detect(context.Background(), fake.options())
		assert.False(t, det.Available)
		assert.Equal(t, "/usr/bin/gcc", det.CC)
		assert.False(t, det.SDTHeader)
		assert.Contains(t, det.Reason, "sys/sdt.h")
	})

	t.Run("found through pkg-config", func(t *testing.T) {
		fake := &fakeToolchain{
			compilers:    []string{"cc"},
			sdtHeader:    true,
			pkgConfigOut: "-L/opt/lib -lstapsdt -lelf",
		}
		det := Detect(context.Background(), fake.options())
		require.True(t, det.Available)
		assert.True(t, det.Libstapsdt)
		assert.Equal(t, []buildinfo.LinkInstruction{
			{Kind: buildinfo.LinkSearchPath, Value: "/opt/lib"},
			{Kind: buildinfo.LinkStaticSupportLib, Value: "stapsdt"},
			{Kind: buildinfo.LinkStaticSupportLib, Value: "elf"},
		}, det.Links)
	})

	t.Run("found through link test", func(t *testing.T) {
		fake := &fakeToolchain{compilers: []string{"cc"}, sdtHeader: true, linkOK: true}
		opts := fake.options()
		opts.LibDir = "/opt/stapsdt/lib"

		det := Detect(context.Background(), opts)
		require.True(t, det.Available)
		assert.Contains(t, det.Links, buildinfo.LinkInstruction{
			Kind:  buildinfo.LinkSearchPath,
			Value: "/opt/stapsdt/lib",
		})
		assert.Contains(t, det.Links, buildinfo.LinkInstruction{
			Kind:  buildinfo.LinkStaticSupportLib,
			Value: "stapsdt",
		})
		// libdl stays dynamic even for static detection
		assert.Contains(t, det.Links, buildinfo.LinkInstruction{
			Kind:  buildinfo.LinkDynamicSupportLib,
			Value: "dl",
		})
	})

	t.Run("nothing links", func(t *testing.T) {
		fake := &fakeToolchain{compilers: []string{"cc"}, sdtHeader: true}
		det := Detect(context.Background(), fake.options())
		assert.False(t, det.Available)
		assert.True(t, det.SDTHeader)
		assert.False(t, det.Libstapsdt)
		assert.Contains(t, det.Reason, "libstapsdt")
	})

	t.Run("compiler override wins", func(t *testing.T) {
		fake := &fakeToolchain{compilers: []string{"cc", "musl-gcc"}, sdtHeader: true, linkOK: true}
		opts := fake.options()
		opts.CC = "musl-gcc"

		det := Detect(context.Background(), opts)
		assert.Equal(t, "/usr/bin/musl-gcc", det.CC)
	})
}

func TestDetectDynamicOverride(t *testing.T) {
	fake := &fakeToolchain{compilers: []string{"cc"}, sdtHeader: true, linkOK: true}
	opts := fake.options()
	opts.Dynamic = true

	det := Detect(context.Background(), opts)
	require.True(t, det.Available)
	assert.True(t, det.Dynamic)

	var sawStatic bool
	for _, cmd := range fake.commands {
		if cmd[0] == "pkg-config" && strings.Contains(strings.Join(cmd, " "), "--static") {
			sawStatic = true
		}
	}
	assert.False(t, sawStatic, "dynamic detection must not ask pkg-config for static flags")

	for _, l := range det.Links {
		if l.Value == "stapsdt" {
			assert.Equal(t, buildinfo.LinkDynamicSupportLib, l.Kind)
		}
	}
}
