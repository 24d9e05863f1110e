// Copyright (c) 2025, Gareth Watts
// All rights reserved.

// Package macapps builds an inventory of the applications installed on a
// Mac from the XML plist printed by system_profiler.
package macapps

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"
)

// Unknown is substituted for any field missing from the source data.
const Unknown = "unknown"

const (
	developerIDPrefix = "Developer ID Application: "
	lastModifiedFmt   = "2006-01-02T15:04:05Z"
)

// Keys of AppRecord.AdditionalInfo.
const (
	InfoKind          = "Kind"
	InfoLocation      = "Location"
	InfoGetInfoString = "Get Info String"
)

// AppRecord describes one installed application.
type AppRecord struct {
	Name    string
	Version string
	Vendor  string
	// LastModified is in seconds since the epoch; 0 when unknown.
	LastModified   int64
	AdditionalInfo Dict
}

// Equal reports whether r and o match in every field.
func (r AppRecord) Equal(o AppRecord) bool {
	return r.Name == o.Name &&
		r.Version == o.Version &&
		r.Vendor == o.Vendor &&
		r.LastModified == o.LastModified &&
		r.AdditionalInfo.Equal(o.AdditionalInfo)
}

// Normalizer converts system_profiler item dicts into AppRecords.
type Normalizer struct {
	bundles BundleReader
	decoder *Decoder
	log     *slog.Logger
}

// NewNormalizer returns a Normalizer reading fallback metadata through
// bundles.  A nil bundles disables the fallback.
func NewNormalizer(bundles BundleReader, decoder *Decoder, log *slog.Logger) *Normalizer {
	log = orDiscard(log)
	if decoder == nil {
		decoder = NewDecoder(true, log)
	}
	return &Normalizer{bundles: bundles, decoder: decoder, log: log}
}

// Normalize builds an AppRecord from one item dict.
func (n *Normalizer) Normalize(d Dict) (AppRecord, error) {
	origin := d.GetOrUnknown("obtained_from")
	signedBy := d.GetOrUnknown("signed_by")

	rec := AppRecord{
		Name:         d.GetOrUnknown("_name"),
		Vendor:       vendorOf(origin, signedBy),
		LastModified: parseEpoch(d.GetOrUnknown("lastModified")),
	}
	rec.Version, _ = d.Get("version")

	rec.AdditionalInfo.Set(InfoKind, d.GetOrUnknown("arch_kind"))
	location := d.GetOrUnknown("path")
	rec.AdditionalInfo.Set(InfoLocation, location)

	if location != Unknown && n.bundles != nil {
		if err := n.applyBundleInfo(&rec, location); err != nil {
			return AppRecord{}, err
		}
	}
	if rec.Version == "" {
		rec.Version = Unknown
	}
	return rec, nil
}

func (n *Normalizer) applyBundleInfo(rec *AppRecord, location string) error {
	data, err := n.bundles.ReadInfoPlist(location)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read bundle info for %s: %w", location, err)
	}
	lookup, err := n.decoder.parseInfoPlist(data)
	if err != nil {
		return fmt.Errorf("bundle %s: %w", location, err)
	}
	if s := lookup("CFBundleGetInfoString"); s != "" {
		rec.AdditionalInfo.Set(InfoGetInfoString, s)
	}
	if rec.Version == "" {
		rec.Version = lookup("CFBundleVersion")
	}
	return nil
}

// remapOrigin turns system_profiler's obtained_from codes into display names.
func remapOrigin(origin string) string {
	switch origin {
	case "apple":
		return "Apple"
	case "mac_app_store":
		return "App Store"
	}
	return origin
}

func vendorOf(origin, signedBy string) string {
	switch {
	case origin == "identified_developer":
		return strings.TrimPrefix(signedBy, developerIDPrefix)
	case origin == Unknown && signedBy != Unknown:
		return signedBy
	}
	return remapOrigin(origin)
}

// parseEpoch returns 0 for anything that isn't a UTC timestamp in
// system_profiler's format.
func parseEpoch(s string) int64 {
	t, err := time.ParseInLocation(lastModifiedFmt, s, time.UTC)
	if err != nil {
		return 0
	}
	return t.Unix()
}
