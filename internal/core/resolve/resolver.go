// Package resolve collapses a duplicate cluster into one canonical record.
// Resolution never fails on well-formed input; the only contract violation
// is an empty cluster.
package resolve

import (
	"github.com/keeperhq/keeper/internal/core/model"
)

// Resolve picks the canonical record for a cluster per the configured
// strategy and, when AutoMerge is set, backfills fields that are empty on
// the base from the other members. Provenance records which member supplied
// each populated field.
func Resolve(cluster []model.ContactRecord, cfg model.ResolutionConfig) (*model.ResolvedContact, error) {
	if len(cluster) == 0 {
		return nil, model.Conflict("cannot resolve an empty cluster")
	}

	base := pickCanonical(cluster, cfg)

	resolved := &model.ResolvedContact{
		Canonical:    base,
		FieldSources: map[string]string{},
	}
	// Cluster members are read-only snapshots; never mutate the base's map.
	if base.Metadata != nil {
		resolved.Canonical.Metadata = make(map[string]interface{}, len(base.Metadata))
		for k, v := range base.Metadata {
			resolved.Canonical.Metadata[k] = v
		}
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"name", base.Name},
		{"email", base.Email},
		{"phone", base.Phone},
		{"company", base.Company},
	} {
		if field.value != "" {
			resolved.FieldSources[field.name] = base.Key()
		}
	}

	for _, member := range cluster {
		if member.Key() == base.Key() {
			continue
		}
		resolved.MergedFrom = append(resolved.MergedFrom, member.Key())

		if !cfg.AutoMerge {
			continue
		}
		backfill(&resolved.Canonical, resolved.FieldSources, member)
	}

	return resolved, nil
}

// pickCanonical chooses the cluster base. StrategyPreferredSource falls back
// to newest when no member carries the preferred source.
func pickCanonical(cluster []model.ContactRecord, cfg model.ResolutionConfig) model.ContactRecord {
	if cfg.Strategy == model.StrategyPreferredSource {
		for _, r := range cluster {
			if r.Source == cfg.PreferredSource {
				return r
			}
		}
	}
	return newest(cluster)
}

// newest returns the member with the maximum UpdatedAt; on a tied timestamp
// the local record wins over the remote one.
func newest(cluster []model.ContactRecord) model.ContactRecord {
	best := cluster[0]
	for _, r := range cluster[1:] {
		switch {
		case r.UpdatedAt.After(best.UpdatedAt):
			best = r
		case r.UpdatedAt.Equal(best.UpdatedAt) && best.Source == model.SourceRemote && r.Source == model.SourceLocal:
			best = r
		}
	}
	return best
}

func backfill(canonical *model.ContactRecord, sources map[string]string, member model.ContactRecord) {
	if canonical.Name == "" && member.Name != "" {
		canonical.Name = member.Name
		sources["name"] = member.Key()
	}
	if canonical.Email == "" && member.Email != "" {
		canonical.Email = member.Email
		sources["email"] = member.Key()
	}
	if canonical.Phone == "" && member.Phone != "" {
		canonical.Phone = member.Phone
		sources["phone"] = member.Key()
	}
	if canonical.Company == "" && member.Company != "" {
		canonical.Company = member.Company
		sources["company"] = member.Key()
	}
	for k, v := range member.Metadata {
		if canonical.Metadata == nil {
			canonical.Metadata = map[string]interface{}{}
		}
		if _, ok := canonical.Metadata[k]; !ok {
			canonical.Metadata[k] = v
		}
	}
}
