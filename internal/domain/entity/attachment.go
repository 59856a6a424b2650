package entity

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Attachment describes a file that accompanies a message. It is stored as a
// structured field on new messages; older messages carry it only as an
// encoded tag inside the body (see DecodeBody).
type Attachment struct {
	Name     string `json:"name" firestore:"name"`
	MIMEType string `json:"mime_type" firestore:"mimeType"`
	Size     int64  `json:"size" firestore:"size"`
	URL      string `json:"url" firestore:"url"`
	IsImage  bool   `json:"is_image" firestore:"isImage"`
}

// Tag grammar: [file|<name>|<mime>|<size>|<url>|<0|1>] with the string fields
// query-escaped. The schema historically had a single text field, so the
// attachment rides inside the body; the pattern tolerates anything that does
// not fully match by treating the body as plain text.
var attachmentTagPattern = regexp.MustCompile(`\[file\|([^|\[\]]*)\|([^|\[\]]*)\|(\d+)\|([^|\[\]]*)\|([01])\]`)

// Tag renders the attachment as its bracketed body tag.
func (a *Attachment) Tag() string {
	flag := "0"
	if a.IsImage {
		flag = "1"
	}
	return fmt.Sprintf("[file|%s|%s|%d|%s|%s]",
		url.QueryEscape(a.Name),
		url.QueryEscape(a.MIMEType),
		a.Size,
		url.QueryEscape(a.URL),
		flag,
	)
}

// EncodeBody embeds the attachment tag into the outgoing message body. A
// caption-less attachment encodes to just the tag.
func EncodeBody(caption string, att *Attachment) string {
	if att == nil {
		return caption
	}
	if caption == "" {
		return att.Tag()
	}
	return caption + "\n" + att.Tag()
}

// DecodeBody extracts the first attachment tag from a message body. The
// remaining text, trimmed, is the caption. A body with no tag, or with a tag
// that does not fully match the grammar, decodes to (body, nil); malformed
// tags are never an error.
func DecodeBody(body string) (string, *Attachment) {
	loc := attachmentTagPattern.FindStringSubmatchIndex(body)
	if loc == nil {
		return body, nil
	}

	group := func(i int) string { return body[loc[2*i]:loc[2*i+1]] }

	name, err := url.QueryUnescape(group(1))
	if err != nil {
		return body, nil
	}
	mimeType, err := url.QueryUnescape(group(2))
	if err != nil {
		return body, nil
	}
	size, err := strconv.ParseInt(group(3), 10, 64)
	if err != nil {
		return body, nil
	}
	fileURL, err := url.QueryUnescape(group(4))
	if err != nil {
		return body, nil
	}

	caption := strings.TrimSpace(body[:loc[0]] + body[loc[1]:])

	return caption, &Attachment{
		Name:     name,
		MIMEType: mimeType,
		Size:     size,
		URL:      fileURL,
		IsImage:  group(5) == "1",
	}
}
