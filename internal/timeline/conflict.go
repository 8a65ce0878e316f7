package timeline

// HasConflict compares two timeline sets structurally at line and stamp
// granularity. An empty side is never a conflict: empty-vs-nonempty is
// resolved by "the non-empty side wins" so a first sync does not force the
// user through conflict resolution. The outcome is symmetric under swapping
// local and remote.
func HasConflict(local, remote []TimelineLine) bool {
	if len(local) == 0 || len(remote) == 0 {
		return false
	}
	if len(local) != len(remote) {
		return true
	}

	localLines := linesByID(local)
	remoteLines := linesByID(remote)

	for id, ll := range localLines {
		rl, ok := remoteLines[id]
		if !ok {
			return true
		}
		if stampsConflict(ll.Stamps, rl.Stamps) {
			return true
		}
	}
	for id := range remoteLines {
		if _, ok := localLines[id]; !ok {
			return true
		}
	}
	return false
}

func stampsConflict(local, remote []TimelineStamp) bool {
	if len(local) != len(remote) {
		return true
	}

	remoteByID := make(map[string]TimelineStamp, len(remote))
	for _, st := range remote {
		remoteByID[st.ID] = st
	}

	for _, ls := range local {
		rs, ok := remoteByID[ls.ID]
		if !ok {
			return true
		}
		if ls.TimeStart != rs.TimeStart || ls.TimeFinish != rs.TimeFinish || ls.IDTag != rs.IDTag {
			return true
		}
		if !sameStringSet(ls.Labels, rs.Labels) || !sameStringSet(ls.TimeEvents, rs.TimeEvents) {
			return true
		}
	}
	return false
}

func linesByID(lines []TimelineLine) map[string]TimelineLine {
	m := make(map[string]TimelineLine, len(lines))
	for _, l := range lines {
		m[l.ID] = l
	}
	return m
}

// sameStringSet compares two lists order-insensitively, ignoring duplicates.
func sameStringSet(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, v := range a {
		as[v] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, v := range b {
		bs[v] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for v := range as {
		if _, ok := bs[v]; !ok {
			return false
		}
	}
	return true
}
