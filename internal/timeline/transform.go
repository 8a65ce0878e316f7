package timeline

// ToFull resolves every stamp's ID references through the library and returns
// the denormalized wire form. The function is total: a stamp whose tag no
// longer exists gets a degraded tag synthesized from the stamp's own
// denormalized label and color, so an upload is never blocked by a dangling
// reference. Label and time-event IDs that no longer resolve are dropped.
func ToFull(lines []TimelineLine, lib *Library) []FullTimelineLine {
	full := make([]FullTimelineLine, len(lines))
	for i, line := range lines {
		fl := FullTimelineLine{
			ID:     line.ID,
			Name:   line.Name,
			Stamps: make([]FullTimelineStamp, len(line.Stamps)),
		}
		for j, st := range line.Stamps {
			fl.Stamps[j] = stampToFull(st, lib)
		}
		full[i] = fl
	}
	return full
}

func stampToFull(st TimelineStamp, lib *Library) FullTimelineStamp {
	var fullTag FullTag
	if tag, ok := lib.TagByID(st.IDTag); ok {
		fullTag = FullTag{Tag: tag, Group: lib.GroupForTag(tag.ID)}
	} else {
		fullTag = FullTag{Tag: Tag{
			ID:    st.IDTag,
			Name:  st.Label,
			Color: st.ColorHex,
		}}
	}
	fullTag.PrimaryID = st.PrimaryID

	labels := make([]FullLabel, 0, len(st.Labels))
	for _, id := range st.Labels {
		if lb, ok := lib.LabelByID(id); ok {
			labels = append(labels, FullLabel{Label: lb, Group: lib.GroupForLabel(id)})
		}
	}

	events := make([]TimeEvent, 0, len(st.TimeEvents))
	for _, id := range st.TimeEvents {
		if e, ok := lib.TimeEventByID(id); ok {
			events = append(events, e)
		}
	}

	if len(labels) == 0 {
		labels = nil
	}
	if len(events) == 0 {
		events = nil
	}

	return FullTimelineStamp{
		ID:         st.ID,
		TimeStart:  st.TimeStart,
		TimeFinish: st.TimeFinish,
		Tag:        fullTag,
		Labels:     labels,
		TimeEvents: events,
		Position:   copyPosition(st.Position),
	}
}

// FromFull converts the denormalized wire form back to the compact form.
// IsActiveForMapView is recomputed from position presence; the two fields are
// never set independently downstream.
func FromFull(lines []FullTimelineLine) []TimelineLine {
	compact := make([]TimelineLine, len(lines))
	for i, line := range lines {
		cl := TimelineLine{
			ID:     line.ID,
			Name:   line.Name,
			Stamps: make([]TimelineStamp, len(line.Stamps)),
		}
		for j, st := range line.Stamps {
			cl.Stamps[j] = stampFromFull(st)
		}
		compact[i] = cl
	}
	return compact
}

func stampFromFull(st FullTimelineStamp) TimelineStamp {
	labels := make([]string, 0, len(st.Labels))
	for _, lb := range st.Labels {
		labels = append(labels, lb.ID)
	}
	events := make([]string, 0, len(st.TimeEvents))
	for _, e := range st.TimeEvents {
		events = append(events, e.ID)
	}
	if len(labels) == 0 {
		labels = nil
	}
	if len(events) == 0 {
		events = nil
	}
	pos := copyPosition(st.Position)
	return TimelineStamp{
		ID:                 st.ID,
		IDTag:              st.Tag.ID,
		PrimaryID:          st.Tag.PrimaryID,
		TimeStart:          st.TimeStart,
		TimeFinish:         st.TimeFinish,
		ColorHex:           st.Tag.Color,
		Label:              st.Tag.Name,
		Labels:             labels,
		TimeEvents:         events,
		Position:           pos,
		IsActiveForMapView: pos != nil,
	}
}

func copyPosition(p *Position) *Position {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
