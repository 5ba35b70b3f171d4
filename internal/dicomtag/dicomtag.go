// Package dicomtag translates between DICOM dictionary keywords and the
// wire-format string keys used by DICOMweb metadata and the tag cache.
package dicomtag

import (
	"errors"
	"fmt"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// ErrUnknownKeyword is returned when a keyword has no entry in the
// DICOM dictionary.
var ErrUnknownKeyword = errors.New("keyword not in DICOM dictionary")

// Key returns the 8-hex-digit tag key ("GGGGEEEE") for a dictionary keyword.
func Key(keyword string) (string, error) {
	info, err := tag.FindByName(keyword)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownKeyword, keyword)
	}
	return fmt.Sprintf("%04X%04X", info.Tag.Group, info.Tag.Element), nil
}

// KeyWithComma returns the tag key in "GGGG,EEEE" form.
func KeyWithComma(keyword string) (string, error) {
	key, err := Key(keyword)
	if err != nil {
		return "", err
	}
	return key[0:4] + "," + key[4:8], nil
}

// KeywordForKey resolves an 8-hex-digit tag key back to its dictionary
// keyword. Returns ErrUnknownKeyword for private or retired tags that
// have no dictionary entry.
func KeywordForKey(key string) (string, error) {
	var group, element uint16
	if _, err := fmt.Sscanf(key, "%04X%04X", &group, &element); err != nil {
		return "", fmt.Errorf("malformed tag key %q: %w", key, err)
	}
	info, err := tag.Find(tag.Tag{Group: group, Element: element})
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownKeyword, key)
	}
	return info.Name, nil
}

// VR returns the value representation declared for a keyword.
func VR(keyword string) (string, error) {
	info, err := tag.FindByName(keyword)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownKeyword, keyword)
	}
	return info.VR, nil
}

// IsSequence reports whether a keyword's VR is SQ. Sequence tags need
// recursive handling the indexer does not do, so callers skip them.
func IsSequence(keyword string) bool {
	info, err := tag.FindByName(keyword)
	if err != nil {
		return false
	}
	return info.VR == "SQ"
}
