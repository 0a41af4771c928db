package sqlstore

import (
	"context"

	"github.com/unkn0wn-root/tagcache/persistence"
)

const kindSection = "section"

type sectionHandler struct{ h *Handler }

func (s *sectionHandler) Create(ctx context.Context, name, identifier string) (*persistence.Section, error) {
	if err := persistence.ValidateSection(name, identifier); err != nil {
		return nil, persistence.InvalidArgument("section", err)
	}
	row := &sectionRow{Name: name, Identifier: identifier}
	if _, err := s.h.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return nil, err
	}
	return row.toSection(), nil
}

func (s *sectionHandler) Update(ctx context.Context, id int64, name, identifier string) (*persistence.Section, error) {
	if err := persistence.ValidateSection(name, identifier); err != nil {
		return nil, persistence.InvalidArgument("section", err)
	}
	row := &sectionRow{ID: id, Name: name, Identifier: identifier}
	res, err := s.h.db.NewUpdate().Model(row).Column("name", "identifier").WherePK().Exec(ctx)
	if err != nil {
		return nil, err
	}
	if err := mustAffect(res, kindSection, id); err != nil {
		return nil, err
	}
	return row.toSection(), nil
}

func (s *sectionHandler) Load(ctx context.Context, id int64) (*persistence.Section, error) {
	row := new(sectionRow)
	if err := s.h.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, kindSection, id)
	}
	return row.toSection(), nil
}

func (s *sectionHandler) LoadAll(ctx context.Context) ([]*persistence.Section, error) {
	var rows []sectionRow
	if err := s.h.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*persistence.Section, len(rows))
	for i := range rows {
		out[i] = rows[i].toSection()
	}
	return out, nil
}

func (s *sectionHandler) LoadByIdentifier(ctx context.Context, identifier string) (*persistence.Section, error) {
	row := new(sectionRow)
	if err := s.h.db.NewSelect().Model(row).Where("identifier = ?", identifier).Scan(ctx); err != nil {
		return nil, notFound(err, kindSection, identifier)
	}
	return row.toSection(), nil
}

func (s *sectionHandler) Delete(ctx context.Context, id int64) error {
	res, err := s.h.db.NewDelete().Model((*sectionRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return mustAffect(res, kindSection, id)
}

func (s *sectionHandler) Assign(ctx context.Context, sectionID, contentID int64) error {
	if _, err := s.Load(ctx, sectionID); err != nil {
		return err
	}
	res, err := s.h.db.NewUpdate().Model((*contentRow)(nil)).
		Set("section_id = ?", sectionID).
		Where("id = ?", contentID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return mustAffect(res, kindContent, contentID)
}

func (s *sectionHandler) AssignmentsCount(ctx context.Context, sectionID int64) (int, error) {
	return s.h.db.NewSelect().Model((*contentRow)(nil)).Where("section_id = ?", sectionID).Count(ctx)
}
