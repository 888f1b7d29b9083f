package research

// ExtractSources turns a batch of raw citations into well-formed sources.
// Records missing a URI or a title are dropped. Duplicate URIs keep the first occurrence.
func ExtractSources(citations []Citation) []GroundingSource {
	if len(citations) == 0 {
		return nil
	}

	sources := make([]GroundingSource, 0, len(citations))
	seen := make(map[string]bool, len(citations))
	for _, c := range citations {
		if c.Web == nil || c.Web.URI == "" || c.Web.Title == "" {
			continue
		}
		if seen[c.Web.URI] {
			continue
		}
		seen[c.Web.URI] = true
		sources = append(sources, GroundingSource{Title: c.Web.Title, URI: c.Web.URI})
	}
	return sources
}

// SourceSet accumulates sources for one session, keyed by URI, in first-seen order.
type SourceSet struct {
	sources []GroundingSource
	seen    map[string]bool
}

func NewSourceSet() *SourceSet {
	return &SourceSet{
		sources: []GroundingSource{},
		seen:    make(map[string]bool),
	}
}

// Merge appends the sources whose URI is not yet known and reports whether anything was added.
func (s *SourceSet) Merge(batch []GroundingSource) bool {
	added := false
	for _, src := range batch {
		if s.seen[src.URI] {
			continue
		}
		s.seen[src.URI] = true
		s.sources = append(s.sources, src)
		added = true
	}
	return added
}

// Sources returns a copy of the accumulated list.
func (s *SourceSet) Sources() []GroundingSource {
	out := make([]GroundingSource, len(s.sources))
	copy(out, s.sources)
	return out
}

func (s *SourceSet) Len() int {
	return len(s.sources)
}
