package timeline

// Library is a read-only lookup façade over one collection snapshot. Lookups
// report absence as a first-class outcome; a missing ID is not an error.
type Library struct {
	collection Collection
	tags       map[string]Tag
	labels     map[string]Label
	timeEvents map[string]TimeEvent
}

// NewLibrary indexes a collection for ID lookup.
func NewLibrary(c Collection) *Library {
	lib := &Library{
		collection: c,
		tags:       make(map[string]Tag, len(c.Tags)),
		labels:     make(map[string]Label, len(c.Labels)),
		timeEvents: make(map[string]TimeEvent, len(c.TimeEvents)),
	}
	for _, t := range c.Tags {
		lib.tags[t.ID] = t
	}
	for _, l := range c.Labels {
		lib.labels[l.ID] = l
	}
	for _, e := range c.TimeEvents {
		lib.timeEvents[e.ID] = e
	}
	return lib
}

// CollectionName returns the name of the loaded collection.
func (l *Library) CollectionName() string {
	return l.collection.Name
}

// TagByID looks up a tag definition.
func (l *Library) TagByID(id string) (Tag, bool) {
	t, ok := l.tags[id]
	return t, ok
}

// LabelByID looks up a label definition.
func (l *Library) LabelByID(id string) (Label, bool) {
	lb, ok := l.labels[id]
	return lb, ok
}

// TimeEventByID looks up a time-event definition.
func (l *Library) TimeEventByID(id string) (TimeEvent, bool) {
	e, ok := l.timeEvents[id]
	return e, ok
}

// Tags returns the collection's tags in definition order.
func (l *Library) Tags() []Tag {
	return append([]Tag(nil), l.collection.Tags...)
}

// Labels returns the collection's labels in definition order.
func (l *Library) Labels() []Label {
	return append([]Label(nil), l.collection.Labels...)
}

// TagGroups returns the collection's tag groups in definition order.
func (l *Library) TagGroups() []TagGroup {
	return append([]TagGroup(nil), l.collection.TagGroups...)
}

// LabelGroups returns the collection's label groups in definition order.
func (l *Library) LabelGroups() []LabelGroup {
	return append([]LabelGroup(nil), l.collection.LabelGroups...)
}

// TimeEvents returns the collection's time events in definition order.
func (l *Library) TimeEvents() []TimeEvent {
	return append([]TimeEvent(nil), l.collection.TimeEvents...)
}

// GroupForTag scans tag groups in definition order and returns the first one
// containing the tag. Well-formed collections put a tag in at most one group;
// under multi-group membership the first match wins.
func (l *Library) GroupForTag(tagID string) *TagGroupInfo {
	for _, g := range l.collection.TagGroups {
		for _, id := range g.Tags {
			if id == tagID {
				return &TagGroupInfo{ID: g.ID, Name: g.Name}
			}
		}
	}
	return nil
}

// GroupForLabel scans label groups in definition order and returns the first
// one containing the label.
func (l *Library) GroupForLabel(labelID string) *LabelGroupInfo {
	for _, g := range l.collection.LabelGroups {
		for _, id := range g.Labels {
			if id == labelID {
				return &LabelGroupInfo{ID: g.ID, Name: g.Name}
			}
		}
	}
	return nil
}
