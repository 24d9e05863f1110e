// Copyright (c) 2016, Gareth Watts
// All rights reserved.

package macapps

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/kr/pretty"
)

// DebugZipName is the file written by WriteDebugZip.
const DebugZipName = "macapps-debug.zip"

func addSysinfoToZip(zf *zip.Writer) error {
	info := fmt.Sprintf(`OS: %s
Arch: %s
CPU Count: %d
`, runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
	return addStringToZip(zf, "sysinfo.txt", info)
}

// addBundlesToZip copies the Info.plist of every record with a known
// location.  Only the Info.plist is captured; no other bundle content is
// included.
func addBundlesToZip(zf *zip.Writer, bundles BundleReader, records []AppRecord) error {
	var captured []string
	for _, rec := range records {
		loc, _ := rec.AdditionalInfo.Get(InfoLocation)
		if loc == "" || loc == Unknown || oneOf(loc, captured) {
			continue
		}
		captured = append(captured, loc)
		fn := path.Join("bundles", zipSafeName(rec.Name, len(captured)), "Info.plist")
		data, err := bundles.ReadInfoPlist(loc)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err := addStringToZip(zf, fn+".txt", fmt.Sprintf("failed to read %s: %v", loc, err)); err != nil {
				return err
			}
			continue
		}
		if err := addBytesToZip(zf, fn, data); err != nil {
			return err
		}
	}
	return nil
}

// WriteDebugZip writes a .zip file containing debugging information in the
// given target directory and returns its path.  If targetDir is empty then
// it will use the executable's directory, or the user's home (or Desktop
// on Windows) directory if that is not writable.
//
// The zip holds the raw profiler output, the parsed records, some system
// information and the Info.plist files of the listed bundles.
func WriteDebugZip(targetDir string, raw []string, records []AppRecord, bundles BundleReader) (fn string, err error) {
	if targetDir == "" {
		targetDir, err = getDefaultDir()
		if err != nil {
			return "", err
		}
	}

	fn = filepath.Join(targetDir, DebugZipName)
	debugFile, err := os.Create(fn)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for write: %w", fn, err)
	}
	defer debugFile.Close()

	zf := zip.NewWriter(debugFile)
	if err := addStringToZip(zf, "profiler-output.xml", strings.Join(raw, "")); err != nil {
		return "", err
	}
	if err := addSysinfoToZip(zf); err != nil {
		return "", err
	}
	if err := addStringToZip(zf, "records.txt", pretty.Sprint(records)+"\n"); err != nil {
		return "", err
	}
	if bundles != nil {
		if err := addBundlesToZip(zf, bundles, records); err != nil {
			return "", err
		}
	}
	if err := zf.Close(); err != nil {
		return "", err
	}
	return fn, nil
}

// addStringToZip adds a string as a new file to a zip file with the given filename
func addStringToZip(zf *zip.Writer, filename, content string) error {
	return addBytesToZip(zf, filename, []byte(content))
}

func addBytesToZip(zf *zip.Writer, filename string, content []byte) error {
	f, err := zf.Create(filename)
	if err != nil {
		return err
	}
	_, err = f.Write(content)
	return err
}

// zipSafeName makes an application name usable as a single path element.
// n disambiguates apps that share a name.
func zipSafeName(name string, n int) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		name = Unknown
	}
	return fmt.Sprintf("%03d-%s", n, name)
}

// getDefaultDir returns the directory the executable is in,
// or the user's home directory, or the Windows Desktop directory if that
// is not writable
func getDefaultDir() (string, error) {
	dir := filepath.Dir(os.Args[0])
	if dir != "" && isWritable(dir) {
		return dir, nil
	}

	user, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to fetch user information: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(user.HomeDir, "Desktop"), nil
	default:
		return user.HomeDir, nil
	}
}

func isWritable(dir string) bool {
	tf, err := os.CreateTemp(dir, "macapps")
	if err != nil {
		return false
	}
	defer os.Remove(tf.Name())
	tf.Close()
	return true
}

// oneOf returns true if s matches one of choices.
func oneOf(s string, choices []string) bool {
	for _, ch := range choices {
		if s == ch {
			return true
		}
	}
	return false
}
