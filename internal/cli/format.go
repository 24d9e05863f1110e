// Copyright (c) 2025, Gareth Watts
// All rights reserved.

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/kr/pretty"
	"gopkg.in/yaml.v3"
	"howett.net/plist"

	"github.com/gwatts/macapps"
)

const (
	formatText   = "text"
	formatJSON   = "json"
	formatYAML   = "yaml"
	formatPlist  = "plist"
	formatPretty = "pretty"
)

var formats = []string{formatText, formatJSON, formatYAML, formatPlist, formatPretty}

func validFormat(f string) bool {
	for _, v := range formats {
		if f == v {
			return true
		}
	}
	return false
}

type recordOut struct {
	Name           string      `json:"name" yaml:"name" plist:"name"`
	Version        string      `json:"version" yaml:"version" plist:"version"`
	Vendor         string      `json:"vendor" yaml:"vendor" plist:"vendor"`
	LastModified   int64       `json:"lastModified" yaml:"lastModified" plist:"lastModified"`
	AdditionalInfo orderedInfo `json:"additionalInfo" yaml:"additionalInfo" plist:"additionalInfo"`
}

// orderedInfo keeps AdditionalInfo in insertion order where the encoding
// allows it.  Plist dictionaries are always written sorted.
type orderedInfo struct {
	macapps.Dict
}

func (o orderedInfo) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		v, _ := o.Get(k)
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (o orderedInfo) MarshalYAML() (interface{}, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range o.Keys() {
		v, _ := o.Get(k)
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v})
	}
	return n, nil
}

func (o orderedInfo) MarshalPlist() (interface{}, error) {
	return o.Map(), nil
}

func toOut(apps []macapps.AppRecord) []recordOut {
	out := make([]recordOut, len(apps))
	for i, a := range apps {
		out[i] = recordOut{
			Name:           a.Name,
			Version:        a.Version,
			Vendor:         a.Vendor,
			LastModified:   a.LastModified,
			AdditionalInfo: orderedInfo{a.AdditionalInfo},
		}
	}
	return out
}

func writeRecords(w io.Writer, format string, apps []macapps.AppRecord) error {
	switch format {
	case formatText:
		return writeText(w, apps)
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(toOut(apps))
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toOut(apps)); err != nil {
			return err
		}
		return enc.Close()
	case formatPlist:
		enc := plist.NewEncoderForFormat(w, plist.XMLFormat)
		enc.Indent("\t")
		if err := enc.Encode(toOut(apps)); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	case formatPretty:
		_, err := pretty.Fprintf(w, "%# v\n", apps)
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}

func writeText(w io.Writer, apps []macapps.AppRecord) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tVENDOR\tMODIFIED\tLOCATION")
	for _, a := range apps {
		loc, _ := a.AdditionalInfo.Get(macapps.InfoLocation)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.Name, a.Version, a.Vendor, modified(a.LastModified), loc)
	}
	return tw.Flush()
}

func modified(epoch int64) string {
	if epoch == 0 {
		return "-"
	}
	return time.Unix(epoch, 0).UTC().Format("2006-01-02 15:04")
}
