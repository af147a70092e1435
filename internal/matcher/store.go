package matcher

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/charliek/logdog/internal/domain"
)

const (
	xmlActiveTime  = "Time"
	xmlActiveCount = "Count"
	xmlIndent      = "    "
)

// Document is the persisted form of a matcher set
type Document struct {
	Window   domain.Window
	Matchers []Config
}

// The element names below are the established file format. GroupNames and
// its Name children hold full group definitions.
type documentXML struct {
	XMLName  xml.Name     `xml:"LogLineMatchers"`
	Duration *durationXML `xml:"Duration"`
	Matchers []matcherXML `xml:"LogLineMatcher"`
}

type durationXML struct {
	Active string `xml:"active,attr"`
	Time   string `xml:"Time"`
	Count  string `xml:"Count"`
}

type matcherXML struct {
	Name           *string    `xml:"Name"`
	Event          string     `xml:"Event"`
	Enabled        string     `xml:"Enabled"`
	TimeDiff       string     `xml:"TimeDiff"`
	Source         *string    `xml:"Source"`
	Regexp         *string    `xml:"RegExp"`
	Groups         *groupsXML `xml:"GroupNames"`
	PresentationID string     `xml:"PresentationId"`
	Trigger        string     `xml:"Trigger"`
}

type groupsXML struct {
	Groups []groupXML `xml:"Name"`
}

type groupXML struct {
	Name             string `xml:",chardata"`
	ScaleUnit        string `xml:"ScaleUnit,attr"`
	ScaleFormat      string `xml:"ScaleFormat,attr"`
	ScaleRangeMin    string `xml:"ScaleRangeMin,attr,omitempty"`
	ScaleRangeMax    string `xml:"ScaleRangeMax,attr,omitempty"`
	ScaleIncludeZero string `xml:"ScaleIncludeZero,attr"`
	ValueDiff        string `xml:"ValueDiff,attr"`
}

// ReadDocument decodes a matcher file. Matcher entries without a name,
// source or regex are logged and dropped; the rest are returned
// unvalidated.
func ReadDocument(r io.Reader, logger *slog.Logger) (Document, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var raw documentXML
	if err := xml.NewDecoder(r).Decode(&raw); err != nil {
		return Document{}, fmt.Errorf("%w: decoding matcher file: %v", domain.ErrStorage, err)
	}

	doc := Document{Window: domain.DefaultWindow()}
	if raw.Duration != nil {
		doc.Window = domain.Window{
			UseTime: raw.Duration.Active == xmlActiveTime,
			Minutes: domain.ParseMinutes(raw.Duration.Time),
			Count:   domain.ParseCount(raw.Duration.Count),
		}
	}

	for i, mx := range raw.Matchers {
		c, ok := mx.config(logger)
		if !ok {
			logger.Warn("matcher entry is missing name, source or regexp, skipped", "index", i)
			continue
		}
		doc.Matchers = append(doc.Matchers, c)
	}
	return doc, nil
}

// WriteDocument encodes doc as an indented matcher file
func WriteDocument(w io.Writer, doc Document) error {
	raw := documentXML{
		Duration: &durationXML{
			Active: doc.Window.Active(),
			Time:   strconv.Itoa(doc.Window.Minutes),
			Count:  strconv.Itoa(doc.Window.Count),
		},
	}
	for _, c := range doc.Matchers {
		raw.Matchers = append(raw.Matchers, matcherXMLFrom(c))
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", xmlIndent)
	if err := enc.Encode(raw); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// LoadFile reads a matcher file from disk
func LoadFile(path string, logger *slog.Logger) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("%w: reading %s: %v", domain.ErrStorage, path, err)
	}
	return ReadDocument(bytes.NewReader(data), logger)
}

// SaveFile writes doc to path, replacing any existing file. An empty path
// fails with domain.ErrNoPath.
func SaveFile(path string, doc Document) error {
	if path == "" {
		return domain.ErrNoPath
	}

	var buf bytes.Buffer
	if err := WriteDocument(&buf, doc); err != nil {
		return fmt.Errorf("%w: encoding matcher file: %v", domain.ErrStorage, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", domain.ErrStorage, path, err)
	}
	defer f.Close()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: writing %s: %v", domain.ErrStorage, path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: syncing %s: %v", domain.ErrStorage, path, err)
	}
	return nil
}

func (mx matcherXML) config(logger *slog.Logger) (Config, bool) {
	if mx.Name == nil || *mx.Name == "" || mx.Source == nil || *mx.Source == "" || mx.Regexp == nil || *mx.Regexp == "" {
		return Config{}, false
	}

	c := Config{
		Name:     *mx.Name,
		Event:    mx.Event == "true",
		Enabled:  mx.Enabled == "" || mx.Enabled == "true",
		TimeDiff: mx.TimeDiff == "true",
		Source:   *mx.Source,
		Regexp:   *mx.Regexp,
		Trigger:  domain.ParseTriggerType(strings.TrimSpace(mx.Trigger)),
	}
	if mx.PresentationID != "" {
		id, err := strconv.Atoi(strings.TrimSpace(mx.PresentationID))
		if err != nil {
			logger.Warn("invalid presentation id, using 0", "matcher", c.Name, "error", err)
		} else {
			c.PresentationID = id
		}
	}
	if mx.Groups != nil {
		for _, gx := range mx.Groups.Groups {
			if gx.Name == "" {
				continue
			}
			g := Group{
				Name:        gx.Name,
				ScaleUnit:   gx.ScaleUnit,
				ScaleFormat: gx.ScaleFormat,
				IncludeZero: gx.ScaleIncludeZero == "true",
				ValueDiff:   gx.ValueDiff == "true",
			}
			g.SetRange(gx.ScaleRangeMin, gx.ScaleRangeMax)
			c.Groups = append(c.Groups, g)
		}
	}
	return c, true
}

func matcherXMLFrom(c Config) matcherXML {
	name, src, re := c.Name, c.Source, c.Regexp
	mx := matcherXML{
		Name:           &name,
		Event:          strconv.FormatBool(c.Event),
		Enabled:        strconv.FormatBool(c.Enabled),
		TimeDiff:       strconv.FormatBool(c.TimeDiff),
		Source:         &src,
		Regexp:         &re,
		PresentationID: strconv.Itoa(c.PresentationID),
		Trigger:        c.Trigger.String(),
	}

	var groups []groupXML
	for _, g := range c.Groups {
		if g.Name == "" {
			continue
		}
		lo, hi := g.RangeStrings()
		groups = append(groups, groupXML{
			Name:             g.Name,
			ScaleUnit:        g.ScaleUnit,
			ScaleFormat:      g.ScaleFormat,
			ScaleRangeMin:    lo,
			ScaleRangeMax:    hi,
			ScaleIncludeZero: strconv.FormatBool(g.IncludeZero),
			ValueDiff:        strconv.FormatBool(g.ValueDiff),
		})
	}
	if len(groups) > 0 {
		mx.Groups = &groupsXML{Groups: groups}
	}
	return mx
}
