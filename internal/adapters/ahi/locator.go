package ahi

import (
	"fmt"
	"strings"
)

const locatorScheme = "ahi://"

// nonImagePlaceholder ends the locator of an instance with no image
// frames (structured reports, presentation states). Such locators are
// indexed but not retrievable.
const nonImagePlaceholder = "non-image-instance"

// frameLocator is the parsed form of an ahi:// composite locator:
// scheme://datastoreId/imageSetId/seriesUID/instanceUID/frameId.
type frameLocator struct {
	DatastoreID    string
	ImageSetID     string
	SeriesUID      string
	SOPInstanceUID string
	FrameID        string
}

func (l frameLocator) String() string {
	return locatorScheme + strings.Join([]string{
		l.DatastoreID, l.ImageSetID, l.SeriesUID, l.SOPInstanceUID, l.FrameID,
	}, "/")
}

func parseFrameLocator(s string) (frameLocator, error) {
	rest, ok := strings.CutPrefix(s, locatorScheme)
	if !ok {
		return frameLocator{}, fmt.Errorf("locator %q does not use the %s scheme", s, locatorScheme)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 5 {
		return frameLocator{}, fmt.Errorf("locator %q has %d segments, want 5", s, len(parts))
	}
	return frameLocator{
		DatastoreID:    parts[0],
		ImageSetID:     parts[1],
		SeriesUID:      parts[2],
		SOPInstanceUID: parts[3],
		FrameID:        parts[4],
	}, nil
}
