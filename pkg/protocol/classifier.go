package protocol

import (
	"fmt"
	"slices"
)

// rule is one row of the classification table.
type rule struct {
	name     string
	match    func(f fields) bool
	classify func(c *Classifier, f fields) (Event, error)
}

// classificationRules runs in order and the first match wins:
//
//  1. an "event" discriminant dispatches on its value,
//  2. otherwise a "type" discriminant dispatches on its value,
//  3. otherwise a bare session_uuid+timestamp object is session info the
//     first time and a heartbeat after that,
//  4. anything else is an unrecognized shape.
//
// A discriminant with an unknown value stops at its own stage instead of
// falling through to the next one.
var classificationRules = buildRules()

func buildRules() []rule {
	var rules []rule
	for _, dr := range eventDialect {
		rules = append(rules, taggedRule("event", dr, unwrapData(dr.adapt)))
	}
	rules = append(rules, rule{name: "event:*", match: hasField("event"), classify: unrecognized("event")})

	for _, dr := range typeDialect {
		rules = append(rules, taggedRule("type", dr, dr.adapt))
	}
	rules = append(rules, rule{name: "type:*", match: hasField("type"), classify: unrecognized("type")})

	rules = append(rules,
		rule{name: "shape:session", match: isSessionShape, classify: (*Classifier).sessionOrHeartbeat},
		rule{name: "*", match: func(fields) bool { return true }, classify: unrecognized("")},
	)
	return rules
}

func taggedRule(discriminant string, dr dialectRule, adapt func(fields) (Event, error)) rule {
	name := discriminant + ":" + dr.value
	if len(dr.requires) > 0 {
		name += fmt.Sprintf("%v", dr.requires)
	}
	requires := slices.Clone(dr.requires)
	return rule{
		name: name,
		match: func(f fields) bool {
			value, err := f.str(discriminant)
			if err != nil || value != dr.value {
				return false
			}
			for _, key := range requires {
				if !f.has(key) {
					return false
				}
			}
			return true
		},
		classify: func(_ *Classifier, f fields) (Event, error) {
			return adapt(f)
		},
	}
}

func hasField(key string) func(fields) bool {
	return func(f fields) bool {
		_, ok := f[key]
		return ok
	}
}

func isSessionShape(f fields) bool {
	return f.has("session_uuid") && f.has("timestamp")
}

func unrecognized(discriminant string) func(*Classifier, fields) (Event, error) {
	return func(_ *Classifier, f fields) (Event, error) {
		msg := "unrecognized payload shape"
		if discriminant != "" {
			msg = fmt.Sprintf("unrecognized %s value %s", discriminant, string(f[discriminant]))
		}
		return ProtocolError{ErrorKind: UnrecognizedShape, Message: msg}, nil
	}
}

// Classifier maps decoded payloads to events. It holds per-turn state (whether
// session info was already seen) and must not be shared across turns.
type Classifier struct {
	sessionSeen bool
}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify maps one record payload to exactly one event. A payload that is not
// a JSON object, or whose fields have the wrong types, yields a *ParseError.
func (c *Classifier) Classify(data []byte) (Event, error) {
	f, err := decodeFields(data)
	if err != nil {
		return nil, &ParseError{Raw: string(data), Err: err}
	}

	for _, r := range classificationRules {
		if !r.match(f) {
			continue
		}
		ev, err := r.classify(c, f)
		if err != nil {
			return nil, &ParseError{Raw: string(data), Err: fmt.Errorf("%s: %w", r.name, err)}
		}
		if _, ok := ev.(SessionInfo); ok {
			c.sessionSeen = true
		}
		return ev, nil
	}
	return ProtocolError{ErrorKind: UnrecognizedShape, Message: "unrecognized payload shape"}, nil
}

func (c *Classifier) sessionOrHeartbeat(f fields) (Event, error) {
	info, err := adaptSessionInfo(f)
	if err != nil {
		return nil, err
	}
	if c.sessionSeen {
		return Heartbeat{Timestamp: info.(SessionInfo).Timestamp}, nil
	}
	return info, nil
}
