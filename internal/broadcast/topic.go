package broadcast

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind distinguishes the two addressable identity spaces. A single person
// may hold connections under both at once.
type Kind string

const (
	KindUser     Kind = "user"
	KindProvider Kind = "provider"
)

// topicPrefix namespaces all notification channels on the shared broker.
const topicPrefix = "notify:"

// TopicPattern matches every notification topic. Subscribers use a single
// pattern subscription instead of one subscription per recipient.
const TopicPattern = topicPrefix + "*"

// Topic derives the bus channel name for a recipient, e.g. "notify:user:42".
func Topic(kind Kind, id int64) string {
	return topicPrefix + string(kind) + ":" + strconv.FormatInt(id, 10)
}

// ParseTopic recovers the recipient kind and id from a topic produced by
// Topic. The two functions must stay inverse of each other: the receiving
// instance has only the channel name to route by.
func ParseTopic(topic string) (Kind, int64, error) {
	rest, ok := strings.CutPrefix(topic, topicPrefix)
	if !ok {
		return "", 0, fmt.Errorf("topic %q: missing %q prefix", topic, topicPrefix)
	}

	kindStr, idStr, ok := strings.Cut(rest, ":")
	if !ok {
		return "", 0, fmt.Errorf("topic %q: want <kind>:<id>", topic)
	}

	kind := Kind(kindStr)
	if kind != KindUser && kind != KindProvider {
		return "", 0, fmt.Errorf("topic %q: unknown recipient kind %q", topic, kindStr)
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("topic %q: invalid recipient id %q", topic, idStr)
	}

	return kind, id, nil
}
