package topics

import (
	"fmt"
	"regexp"
	"strings"

	"filestore/internal/shared/errors"
)

// Kind identifies the resource family a subscription topic refers to
type Kind string

const (
	KindProfile Kind = "profiles"
	KindFiles   Kind = "files"
)

// TopicInfo represents a parsed subscription topic
type TopicInfo struct {
	Kind      Kind
	SubjectID string
}

var (
	// Topic pattern: {KIND}/{SUBJECT_ID}
	topicRegex = regexp.MustCompile(`^(profiles|files)/([^/]+)$`)

	// Valid ID pattern (alphanumeric, hyphens, underscores)
	validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// Parse parses a subscription topic of the form {kind}/{subjectID}
func Parse(topic string) (*TopicInfo, error) {
	if topic == "" {
		return nil, errors.NewValidationError("topic cannot be empty")
	}

	topic = strings.Trim(topic, "/")

	matches := topicRegex.FindStringSubmatch(topic)
	if len(matches) != 3 {
		return nil, errors.NewValidationError("invalid topic format").
			WithDetail("expected_format", "profiles/{USER_ID} or files/{OWNER_ID}").
			WithDetail("provided_topic", topic)
	}

	kind := Kind(matches[1])
	subjectID := matches[2]

	if !IsValidID(subjectID) {
		return nil, errors.NewValidationError("invalid topic subject ID").
			WithDetail("subject_id", subjectID)
	}

	return &TopicInfo{
		Kind:      kind,
		SubjectID: subjectID,
	}, nil
}

// IsValidID reports whether an identifier can appear in a topic
func IsValidID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	return validIDPattern.MatchString(id)
}

// Profile constructs the profile topic for a user
func Profile(userID string) string {
	return fmt.Sprintf("%s/%s", KindProfile, userID)
}

// Files constructs the file-activity topic for an owner
func Files(ownerID string) string {
	return fmt.Sprintf("%s/%s", KindFiles, ownerID)
}
