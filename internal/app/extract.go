package app

import (
	"context"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"rocm-installer/internal/core"
)

// Extract unpacks every archive under PackagesDir into OutputDir, one
// session per architecture group, and writes each group's manifests and
// required dependency set.
func (s Service) Extract(ctx context.Context, req ExtractRequest) (ExtractResult, error) {
	packagesDir := strings.TrimSpace(req.PackagesDir)
	if packagesDir == "" {
		return ExtractResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("packages directory is required")
	}
	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		return ExtractResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("output directory is required")
	}
	archives, err := s.Scanner.FindArchives(packagesDir)
	if err != nil {
		return ExtractResult{}, err
	}
	if len(archives) == 0 {
		return ExtractResult{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("no .rpm or .deb archives found in " + packagesDir)
	}

	byGroup := map[string][]string{}
	for _, archive := range archives {
		group := core.GfxTag(archive)
		byGroup[group] = append(byGroup[group], archive)
	}
	groups := make([]string, 0, len(byGroup))
	for group := range byGroup {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	extractor := core.NewExtractor(s.Archives, s.LayoutWriter, outputDir)
	result := ExtractResult{OutputDir: outputDir}
	var extracted []string
	for _, group := range groups {
		session := core.NewExtractionSession(group)
		for _, archive := range byGroup[group] {
			if _, err := extractor.Extract(ctx, session, archive); err != nil {
				return result, err
			}
		}
		set, err := extractor.Finish(ctx, session)
		if err != nil {
			return result, err
		}
		extracted = append(extracted, session.Archives...)
		result.Groups = append(result.Groups, ExtractGroupSummary{
			Group:        group,
			Packages:     session.PackageCount,
			Components:   session.ComponentCount,
			RequiredDeps: len(set.Entries),
		})
	}
	if err := s.LayoutWriter.WritePackagesConfig(outputDir, extracted); err != nil {
		return result, err
	}
	result.Archives = len(extracted)
	log.Ctx(ctx).Info().
		Str("output", outputDir).
		Int("archives", result.Archives).
		Int("groups", len(groups)).
		Msg("extraction complete")
	return result, nil
}
