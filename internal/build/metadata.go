package build

import (
	"encoding/json"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/gitinfo"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/page"
)

// MetadataFile is written to the output directory after builds.
const MetadataFile = "siteData.json"

// SiteData is the persisted search and build metadata.
type SiteData struct {
	BuildID     string            `json:"buildId"`
	Revision    string            `json:"revision"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Pages       []page.SearchData `json:"pages"`
}

// writeMetadata persists search records of every searchable page that has
// been generated, sorted by source path.
func (s *Scheduler) writeMetadata(sess *Session) error {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()

	rev, err := gitinfo.Revision(sess.cfg.Root)
	if err != nil {
		s.logger.Warn("Failed to read source revision", logfields.Error(err))
	}
	data := SiteData{
		BuildID:     sess.ID,
		Revision:    rev,
		GeneratedAt: s.now().UTC(),
		Pages:       []page.SearchData{},
	}
	for _, p := range s.Pages() {
		if !p.Searchable {
			continue
		}
		if sd, ok := p.Search(); ok {
			data.Pages = append(data.Pages, sd)
		}
	}

	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(sess, filepath.Join(sess.cfg.OutputPath(), MetadataFile), append(buf, '\n'))
}
