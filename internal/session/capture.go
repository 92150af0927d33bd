package session

import "time"

// CaptureInput is one capture event as delivered by a hook or tool call.
type CaptureInput struct {
	ExternalRef string
	Actor       string
	Content     string
	Tool        string
	Target      string
}

// Capture is the full capture workflow: resolve the event's session, mark it
// active, append the entry, and rotate the segment if it crossed the
// threshold. An empty ExternalRef appends to the active session, allocating a
// fresh session when none is active. Returns the session id and whether a
// rotation happened.
func Capture(s *Store, in CaptureInput) (string, bool, error) {
	var id string
	var err error
	if in.ExternalRef != "" {
		id, err = s.ResolveSession(in.ExternalRef)
	} else {
		id, err = s.GetActive()
		if err == nil && id == "" {
			id, err = s.ResolveSession("")
		}
	}
	if err != nil {
		return "", false, err
	}

	if err := s.MarkActive(id); err != nil {
		return id, false, err
	}
	if err := s.AppendEntry(id, Entry{
		Actor:   in.Actor,
		Tool:    in.Tool,
		Target:  in.Target,
		Content: in.Content,
		At:      time.Now(),
	}); err != nil {
		return id, false, err
	}

	rotated, err := s.CheckRotation(id)
	return id, rotated, err
}
