package model

import "strings"

// Location addresses an object-store prefix.
type Location struct {
	Bucket string
	Key    string
}

// URI renders the location with the given scheme, e.g. URI("s3") -> "s3://bucket/key".
// Leading and trailing slashes of the key are dropped.
func (l Location) URI(scheme string) string {
	key := strings.Trim(l.Key, "/")
	if key == "" {
		return scheme + "://" + l.Bucket
	}
	return scheme + "://" + l.Bucket + "/" + key
}

// Join returns a location below l.
func (l Location) Join(elem ...string) Location {
	parts := make([]string, 0, len(elem)+1)
	if k := strings.Trim(l.Key, "/"); k != "" {
		parts = append(parts, k)
	}
	for _, e := range elem {
		if e = strings.Trim(e, "/"); e != "" {
			parts = append(parts, e)
		}
	}
	return Location{Bucket: l.Bucket, Key: strings.Join(parts, "/")}
}

// String implements fmt.Stringer.
func (l Location) String() string {
	return l.URI("s3")
}
