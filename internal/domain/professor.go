package domain

// Professor is the aggregate profile of one researcher discovered from paper
// authorship. The first sighting creates the entity; later sightings merge
// into it.
type Professor struct {
	ID           string   `json:"professor_id"`
	Name         string   `json:"name"`
	Institutions []string `json:"institutions"`
	Topics       []string `json:"topics,omitempty"`
	PaperIDs     []string `json:"paper_ids"`
	PaperCount   int      `json:"paper_count"`

	// Citations is the sum of citation counts across the professor's
	// merged papers, as reported by the search sources.
	Citations int `json:"citations,omitempty"`

	// FirstSeen is the position of the paper that first mentioned this
	// professor, used as the deterministic tie-break when ranking.
	FirstSeen int `json:"-"`
}

// PrimaryInstitution returns the first institution recorded for the
// professor, or empty if none is known.
func (p *Professor) PrimaryInstitution() string {
	if len(p.Institutions) == 0 {
		return ""
	}
	return p.Institutions[0]
}

// MergePaper folds one paper's contribution into the professor's aggregate
// profile. The merge is idempotent: applying the same paper twice leaves the
// profile unchanged after the first application.
func (p *Professor) MergePaper(paper *Paper, institutions []string) {
	if paper == nil {
		return
	}
	if !containsString(p.PaperIDs, paper.ID) {
		p.PaperIDs = append(p.PaperIDs, paper.ID)
		p.Citations += paper.Citations
	}
	p.PaperCount = len(p.PaperIDs)
	for _, inst := range institutions {
		if inst != "" && !containsString(p.Institutions, inst) {
			p.Institutions = append(p.Institutions, inst)
		}
	}
	for _, topic := range paper.Topics {
		if topic != "" && !containsString(p.Topics, topic) {
			p.Topics = append(p.Topics, topic)
		}
	}
}

// SharesPaperWith returns true if both professors have at least one paper in
// common.
func (p *Professor) SharesPaperWith(other *Professor) bool {
	if other == nil {
		return false
	}
	for _, id := range p.PaperIDs {
		if containsString(other.PaperIDs, id) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
