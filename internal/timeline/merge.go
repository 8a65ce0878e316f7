package timeline

import "sort"

// Merge reconciles two divergent timeline sets by set union. No line or stamp
// present on either side is ever dropped. For a stamp present on both sides
// the local copy wins every scalar field, while labels and timeEvents become
// the union of both sides: those two lists are independently-addable
// annotations, not mutually exclusive states. Stamps of a line merged from
// both sides are re-sorted ascending by start time; chronological order is
// the canonical order post-merge.
func Merge(local, remote []TimelineLine) []TimelineLine {
	remoteByID := linesByID(remote)
	localSeen := make(map[string]struct{}, len(local))

	merged := make([]TimelineLine, 0, len(local)+len(remote))
	for _, ll := range local {
		localSeen[ll.ID] = struct{}{}
		rl, ok := remoteByID[ll.ID]
		if !ok {
			merged = append(merged, ll)
			continue
		}
		merged = append(merged, mergeLine(ll, rl))
	}
	// Remote-only lines carry through unchanged, in remote order.
	for _, rl := range remote {
		if _, ok := localSeen[rl.ID]; !ok {
			merged = append(merged, rl)
		}
	}
	return merged
}

// mergeLine keeps the local line's name even when the remote name differs;
// name divergence is not treated as a conflict.
func mergeLine(local, remote TimelineLine) TimelineLine {
	remoteByID := make(map[string]TimelineStamp, len(remote.Stamps))
	for _, st := range remote.Stamps {
		remoteByID[st.ID] = st
	}
	localSeen := make(map[string]struct{}, len(local.Stamps))

	stamps := make([]TimelineStamp, 0, len(local.Stamps)+len(remote.Stamps))
	for _, ls := range local.Stamps {
		localSeen[ls.ID] = struct{}{}
		rs, ok := remoteByID[ls.ID]
		if !ok {
			stamps = append(stamps, ls)
			continue
		}
		stamps = append(stamps, mergeStamp(ls, rs))
	}
	for _, rs := range remote.Stamps {
		if _, ok := localSeen[rs.ID]; !ok {
			stamps = append(stamps, rs)
		}
	}

	sort.SliceStable(stamps, func(i, j int) bool {
		si, sj := stamps[i].StartSeconds(), stamps[j].StartSeconds()
		if si != sj {
			return si < sj
		}
		return stamps[i].ID < stamps[j].ID
	})

	return TimelineLine{ID: local.ID, Name: local.Name, Stamps: stamps}
}

func mergeStamp(local, remote TimelineStamp) TimelineStamp {
	out := local
	out.Labels = unionStrings(local.Labels, remote.Labels)
	out.TimeEvents = unionStrings(local.TimeEvents, remote.TimeEvents)
	return out
}

// unionStrings keeps a's order, then appends b's additions in b's order.
// An empty union is nil, matching how empty lists are represented everywhere
// else.
func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	for _, v := range b {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
