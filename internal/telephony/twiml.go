package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strconv"
	"strings"
)

// Prompt is the script read to whoever answers a survey call.
type Prompt struct {
	Lines        []string
	Voice        string
	Language     string
	GatherDigits int
	// ActionURL receives the gathered digits; only used when GatherDigits > 0.
	ActionURL string
}

// DefaultPrompt returns the built-in placeholder script.
func DefaultPrompt() Prompt {
	return Prompt{
		Lines: []string{
			"Hello, this is an automated survey call.",
			"Thank you for taking the time to answer.",
			"Goodbye.",
		},
		Voice:    "alice",
		Language: "en-US",
	}
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type twimlGather struct {
	XMLName   xml.Name   `xml:"Gather"`
	NumDigits string     `xml:"numDigits,attr"`
	Action    string     `xml:"action,attr,omitempty"`
	Method    string     `xml:"method,attr,omitempty"`
	Says      []twimlSay `xml:"Say"`
}

// RenderPrompt renders the prompt as a TwiML document.
func RenderPrompt(p Prompt) (string, error) {
	says := make([]twimlSay, 0, len(p.Lines))
	for _, line := range p.Lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		says = append(says, twimlSay{Voice: p.Voice, Language: p.Language, Text: line})
	}
	if len(says) == 0 {
		return "", errors.New("telephony: prompt has no lines")
	}

	var r twimlResponse
	if p.GatherDigits > 0 {
		r.Verbs = append(r.Verbs, twimlGather{
			NumDigits: strconv.Itoa(p.GatherDigits),
			Action:    p.ActionURL,
			Method:    "POST",
			Says:      says,
		})
	} else {
		for _, s := range says {
			r.Verbs = append(r.Verbs, s)
		}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
