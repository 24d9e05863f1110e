// Copyright (c) 2025, Gareth Watts
// All rights reserved.

package macapps

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"howett.net/plist"
)

const infoPlistPath = "Contents/Info.plist"

// BundleReader returns the raw Info.plist of the application bundle at
// location.  A bundle without one returns an error matching fs.ErrNotExist.
type BundleReader interface {
	ReadInfoPlist(location string) ([]byte, error)
}

// OSBundleReader reads bundles from the local filesystem.
type OSBundleReader struct{}

func (OSBundleReader) ReadInfoPlist(location string) ([]byte, error) {
	return os.ReadFile(filepath.Join(location, filepath.FromSlash(infoPlistPath)))
}

// FSBundleReader reads bundles from an fs.FS rooted at "/".
type FSBundleReader struct {
	FS fs.FS
}

func (r FSBundleReader) ReadInfoPlist(location string) ([]byte, error) {
	name := path.Join(strings.TrimPrefix(filepath.ToSlash(location), "/"), infoPlistPath)
	return fs.ReadFile(r.FS, name)
}

// infoValues looks up string values in an Info.plist.
type infoValues func(key string) string

// parseInfoPlist decodes an XML Info.plist, or a binary/openstep one when
// the content isn't XML.
func (d *Decoder) parseInfoPlist(data []byte) (infoValues, error) {
	if !bytes.HasPrefix(data, []byte("bplist")) {
		if root, err := d.Parse(bytes.NewReader(data)); err == nil {
			return func(key string) string { return xmlInfoValue(root, key) }, nil
		}
	}

	var m map[string]interface{}
	if _, err := plist.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode Info.plist: %w", err)
	}
	return func(key string) string {
		s, _ := m[key].(string)
		return strings.TrimSpace(s)
	}, nil
}

// xmlInfoValue finds key in the top level dict and returns the first string
// element following it.
func xmlInfoValue(root Node, key string) string {
	if root.Tag() != "plist" {
		return ""
	}
	for _, dict := range root.Children() {
		if dict.Tag() != "dict" {
			continue
		}
		for _, k := range dict.Children() {
			if k.Tag() != "key" || strings.Join(strings.Fields(k.Text()), " ") != key {
				continue
			}
			for v := k.NextElementSibling(); v != nil; v = v.NextElementSibling() {
				if v.Tag() == "string" {
					return strings.TrimSpace(v.Text())
				}
			}
		}
	}
	return ""
}
