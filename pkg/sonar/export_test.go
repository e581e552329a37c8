package sonar

import "time"

// SetClock fixes the time used for work directory names.
func (s *Scanner) SetClock(now func() time.Time) { s.now = now }
