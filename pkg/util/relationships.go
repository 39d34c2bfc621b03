package util

import (
	"fmt"

	v1 "github.com/authzed/authzed-go/proto/authzed/api/v1"
)

// RelString best-effort formats a relationship for debug logging
func RelString(r *v1.Relationship) string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("%s:%s#%s@%s:%s",
		r.GetResource().GetObjectType(), r.GetResource().GetObjectId(),
		r.GetRelation(),
		r.GetSubject().GetObject().GetObjectType(), r.GetSubject().GetObject().GetObjectId())
}
