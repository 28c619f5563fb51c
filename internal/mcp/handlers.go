package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"attn-signals/internal/awards"
	"attn-signals/internal/classify"
	"attn-signals/internal/export"
	"attn-signals/internal/ingest"
	"attn-signals/internal/pipeline"
	"attn-signals/internal/tiering"
	"attn-signals/internal/trend"

	"github.com/google/uuid"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

type AnalyzeInput struct {
	InputPath   string `json:"input_path" jsonschema:"path to a CSV, XLSX or JSONL punch file"`
	ThroughWeek *int   `json:"through_week,omitempty" jsonschema:"only analyse weeks up to this zero-based week index"`
	Export      bool   `json:"export,omitempty" jsonschema:"also write the JSON collections under the configured output directory"`
}

type AnalyzeOutput struct {
	RunID         string                    `json:"run_id"`
	Input         string                    `json:"input"`
	Analysed      int                       `json:"analysed_punches"`
	Dropped       int                       `json:"dropped_punches"`
	Duplicates    int                       `json:"duplicate_punches"`
	Students      int                       `json:"students"`
	Sections      int                       `json:"sections"`
	ScoringPeriod string                    `json:"scoring_period"`
	Tiers         map[string]map[string]int `json:"tiers" jsonschema:"student count per cohort and tier"`
	Awards        int                       `json:"awards"`
	Fallbacks     int                       `json:"fallback_awards"`
	OutputDir     string                    `json:"output_dir,omitempty"`
}

type StudentInput struct {
	StudentID string `json:"student_id" jsonschema:"the student identifier"`
}

// TierView is the flattened tier record returned by the tools.
type TierView struct {
	StudentID      string  `json:"student_id"`
	Cohort         string  `json:"cohort"`
	Tier           int     `json:"tier"`
	PercentileTier int     `json:"percentile_tier"`
	CompositeScore float64 `json:"composite_score"`
	PercentileRank float64 `json:"percentile_rank"`
	Cuts           int     `json:"cuts"`
	Absences       int     `json:"absences"`
	Tardies        int     `json:"tardies"`
	TrendDirection string  `json:"trend_direction"`
	TrendSlope     float64 `json:"trend_slope"`
	TrendForced    bool    `json:"trend_forced"`
}

func tierView(a tiering.Assignment) TierView {
	return TierView{
		StudentID:      a.StudentID,
		Cohort:         a.Cohort,
		Tier:           int(a.Tier),
		PercentileTier: int(a.PercentileTier),
		CompositeScore: a.CompositeScore,
		PercentileRank: a.PercentileRank,
		Cuts:           a.Cuts,
		Absences:       a.Absences,
		Tardies:        a.Tardies,
		TrendDirection: string(a.TrendDirection),
		TrendSlope:     a.TrendSlope,
		TrendForced:    a.TrendForced,
	}
}

type StudentOutput struct {
	StudentID    string                `json:"student_id"`
	Tier         *TierView             `json:"tier,omitempty"`
	Trend        *trend.StudentTrend   `json:"trend,omitempty"`
	CutSummaries []classify.CutSummary `json:"cut_summaries"`
	Awards       []awards.Award        `json:"awards"`
}

type ListTiersInput struct {
	Cohort string `json:"cohort,omitempty" jsonschema:"only students of this cohort"`
	Tier   int    `json:"tier,omitempty" jsonschema:"only students in this tier (1-3)"`
}

type ListTiersOutput struct {
	Count int        `json:"count"`
	Tiers []TierView `json:"tiers"`
}

type ListAwardsInput struct{}

type ListAwardsOutput struct {
	Awards []awards.Award `json:"awards"`
}

func (s *Server) handleAnalyze(ctx context.Context, _ *sdkmcp.CallToolRequest, in AnalyzeInput) (*sdkmcp.CallToolResult, AnalyzeOutput, error) {
	if in.InputPath == "" {
		return nil, AnalyzeOutput{}, fmt.Errorf("input_path is required")
	}

	punches, err := ingest.ReadFile(in.InputPath)
	if err != nil {
		return nil, AnalyzeOutput{}, err
	}

	runID := uuid.NewString()
	opts := []pipeline.Option{pipeline.WithRunID(runID)}
	if in.ThroughWeek != nil {
		opts = append(opts, pipeline.WithThroughWeek(*in.ThroughWeek))
	}

	res, err := pipeline.Run(ctx, punches, s.policy, opts...)
	if err != nil {
		return nil, AnalyzeOutput{}, err
	}
	s.store(res)

	out := AnalyzeOutput{
		RunID:         runID,
		Input:         in.InputPath,
		Analysed:      res.Stats.Analysed,
		Dropped:       res.Stats.Sanitize.Dropped,
		Duplicates:    res.Stats.Sanitize.Duplicates,
		Students:      res.Stats.Students,
		Sections:      res.Stats.Sections,
		ScoringPeriod: res.Stats.ScoringPeriod,
		Tiers:         make(map[string]map[string]int),
		Awards:        res.Stats.Awards,
		Fallbacks:     res.Stats.Fallbacks,
	}
	for cohort, tiers := range tiering.Distribution(res.Tiers) {
		out.Tiers[cohort] = make(map[string]int, len(tiers))
		for t, n := range tiers {
			out.Tiers[cohort][fmt.Sprintf("tier%d", t)] = n
		}
	}

	if in.Export && s.cfg != nil {
		dir := filepath.Join(s.cfg.OutputDir, runID)
		if _, err := export.Write(dir, res, export.Manifest{
			Input:       in.InputPath,
			GeneratedAt: time.Now().UTC(),
			Policy:      s.policy,
		}); err != nil {
			return nil, AnalyzeOutput{}, err
		}
		out.OutputDir = dir
	}

	log.Info().Str("run", runID).Str("input", in.InputPath).Msg("Attendance analysed")
	return nil, out, nil
}

func (s *Server) handleStudentSignals(_ context.Context, _ *sdkmcp.CallToolRequest, in StudentInput) (*sdkmcp.CallToolResult, StudentOutput, error) {
	res, err := s.current()
	if err != nil {
		return nil, StudentOutput{}, err
	}

	out := StudentOutput{
		StudentID:    in.StudentID,
		CutSummaries: []classify.CutSummary{},
		Awards:       []awards.Award{},
	}
	for _, a := range res.Tiers {
		if a.StudentID == in.StudentID {
			v := tierView(a)
			out.Tier = &v
			break
		}
	}
	if out.Tier == nil {
		return nil, StudentOutput{}, fmt.Errorf("student %q not found in the last analysis", in.StudentID)
	}

	for i := range res.StudentTrends {
		if res.StudentTrends[i].StudentID == in.StudentID {
			t := res.StudentTrends[i]
			out.Trend = &t
			break
		}
	}
	for _, c := range res.CutSummaries {
		if c.StudentID == in.StudentID {
			out.CutSummaries = append(out.CutSummaries, c)
		}
	}
	for _, a := range res.Awards {
		if a.StudentID == in.StudentID {
			out.Awards = append(out.Awards, a)
		}
	}
	return nil, out, nil
}

func (s *Server) handleListTiers(_ context.Context, _ *sdkmcp.CallToolRequest, in ListTiersInput) (*sdkmcp.CallToolResult, ListTiersOutput, error) {
	res, err := s.current()
	if err != nil {
		return nil, ListTiersOutput{}, err
	}
	if in.Tier < 0 || in.Tier > int(tiering.Tier3) {
		return nil, ListTiersOutput{}, fmt.Errorf("tier must be between 1 and 3, got %d", in.Tier)
	}

	out := ListTiersOutput{Tiers: []TierView{}}
	for _, a := range res.Tiers {
		if in.Cohort != "" && a.Cohort != in.Cohort {
			continue
		}
		if in.Tier != 0 && int(a.Tier) != in.Tier {
			continue
		}
		out.Tiers = append(out.Tiers, tierView(a))
	}
	out.Count = len(out.Tiers)
	return nil, out, nil
}

func (s *Server) handleListAwards(_ context.Context, _ *sdkmcp.CallToolRequest, _ ListAwardsInput) (*sdkmcp.CallToolResult, ListAwardsOutput, error) {
	res, err := s.current()
	if err != nil {
		return nil, ListAwardsOutput{}, err
	}
	out := ListAwardsOutput{Awards: append([]awards.Award{}, res.Awards...)}
	return nil, out, nil
}
