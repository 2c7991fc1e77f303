package usecase

import (
	"context"
	"net/http"
	"sort"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	repo "app/internal/repository"
)

// 解決ルールの名前。ResolvedConflictに記録してUIに出す。
const (
	RuleCountsMatched   = "counts matched"
	RuleMajorityOfThree = "majority of three"
)

// コンフリクト解決エンジン。
// 完了済みランの集約明細だけを入力にした純粋な再計算で、
// 独自の状態は一切持たない。呼ばれるたびに同じ結果を返す。
type ConflictUsecase struct {
	sessions repo.SessionRepository
	runs     repo.RunRepository
	lines    repo.CountLineRepository

	//この差までは「一致」とみなす（既定0＝完全一致のみ）
	tolerance float64
}

func NewConflictUsecase(
	sessions repo.SessionRepository,
	runs repo.RunRepository,
	lines repo.CountLineRepository,
	cfg config.Config,
) *ConflictUsecase {
	return &ConflictUsecase{
		sessions:  sessions,
		runs:      runs,
		lines:     lines,
		tolerance: cfg.CountTolerance,
	}
}

// 1つの完了ランによる観測値
type Observation struct {
	RunID      int64     `json:"run_id"`
	CountType  int       `json:"count_type"`
	OwnerID    int64     `json:"owner_id"`
	OwnerLabel string    `json:"owner_label"`
	Quantity   float64   `json:"quantity"`
	ObservedAt time.Time `json:"observed_at"`
}

// 未解決コンフリクト。全観測値と分散を持つ。
// 分散が大きいものから人が見に行けるようにする。
type ConflictOutput struct {
	ZoneID       int64         `json:"zone_id"`
	ProductCode  string        `json:"product_code"`
	ProductID    *int64        `json:"product_id"`
	ProductName  string        `json:"product_name"`
	Observations []Observation `json:"observations"`
	Variance     float64       `json:"variance"`
}

// 解決済み。採用した数量と適用ルールを持つ。
type ResolvedOutput struct {
	ZoneID      int64     `json:"zone_id"`
	ProductCode string    `json:"product_code"`
	ProductID   *int64    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    float64   `json:"quantity"`
	Rule        string    `json:"rule"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

type SessionConflictsOutput struct {
	SessionID int64            `json:"session_id"`
	Conflicts []ConflictOutput `json:"conflicts"`
	Resolved  []ResolvedOutput `json:"resolved"`
}

// セッションの全ゾーンについて未解決/解決済みを計算して返す。
// 他店舗のセッションは存在しない扱い（数量やowner名を店舗外に見せない）。
func (u *ConflictUsecase) GetSessionConflicts(ctx context.Context, shopID int64, sessionID int64) (SessionConflictsOutput, error) {
	if shopID <= 0 || sessionID <= 0 {
		return SessionConflictsOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidationFailed, "invalid session id")
	}

	session, err := u.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return SessionConflictsOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	if session == nil || session.ShopID != shopID {
		return SessionConflictsOutput{}, NewHTTPError(http.StatusNotFound, CodeSessionNotFound, "session not found")
	}

	runs, err := u.runs.ListCompletedBySession(ctx, sessionID)
	if err != nil {
		return SessionConflictsOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	runIDs := make([]int64, 0, len(runs))
	for _, r := range runs {
		runIDs = append(runIDs, r.ID)
	}

	lines, err := u.lines.ListByRunIDs(ctx, runIDs)
	if err != nil {
		return SessionConflictsOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	conflicts, resolved := resolveCompletedRuns(runs, lines, u.tolerance)

	//JSONでnullにしない
	if conflicts == nil {
		conflicts = []ConflictOutput{}
	}
	if resolved == nil {
		resolved = []ResolvedOutput{}
	}

	return SessionConflictsOutput{
		SessionID: sessionID,
		Conflicts: conflicts,
		Resolved:  resolved,
	}, nil
}

// エンジン本体。完了済みラン＋明細から未解決/解決済みを計算する。
// 入力が同じなら出力も同じ。DBには触らない。
func resolveCompletedRuns(runs []model.CountingRun, lines []model.CountLine, tolerance float64) ([]ConflictOutput, []ResolvedOutput) {
	linesByRun := make(map[int64][]model.CountLine, len(runs))
	for _, ln := range lines {
		linesByRun[ln.RunID] = append(linesByRun[ln.RunID], ln)
	}

	//ゾーンごとに、カウント種別につき最新の完了ランを1つ選ぶ
	//（リスタート後の数え直しで同じ種別の完了が複数あり得るため）
	type zoneKey struct {
		zoneID    int64
		countType int
	}
	latest := make(map[zoneKey]model.CountingRun)
	for _, r := range runs {
		k := zoneKey{r.ZoneID, r.CountType}
		cur, ok := latest[k]
		if !ok || r.CompletedAt.After(*cur.CompletedAt) {
			latest[k] = r
		}
	}

	zoneRuns := make(map[int64][]model.CountingRun)
	for k, r := range latest {
		zoneRuns[k.zoneID] = append(zoneRuns[k.zoneID], r)
	}

	zoneIDs := make([]int64, 0, len(zoneRuns))
	for id := range zoneRuns {
		zoneIDs = append(zoneIDs, id)
	}
	sort.Slice(zoneIDs, func(i, j int) bool { return zoneIDs[i] < zoneIDs[j] })

	var conflicts []ConflictOutput
	var resolved []ResolvedOutput

	for _, zoneID := range zoneIDs {
		selected := zoneRuns[zoneID]

		//比較には独立した2回以上のカウントが要る
		if len(selected) < 2 {
			continue
		}
		sort.Slice(selected, func(i, j int) bool { return selected[i].CountType < selected[j].CountType })

		//ゾーン内の商品ごとに観測値を集める。
		//片方のランにだけ存在する商品は、もう片方では数量0の観測として扱う。
		type productInfo struct {
			id   *int64
			name string
		}
		products := make(map[string]productInfo)
		qty := make(map[string]map[int64]float64) // code -> runID -> quantity

		for _, run := range selected {
			for _, ln := range linesByRun[run.ID] {
				info, ok := products[ln.ProductCode]
				if !ok || (info.id == nil && ln.ProductID != nil) {
					products[ln.ProductCode] = productInfo{id: ln.ProductID, name: ln.ProductName}
				}
				if qty[ln.ProductCode] == nil {
					qty[ln.ProductCode] = make(map[int64]float64)
				}
				qty[ln.ProductCode][run.ID] += ln.Quantity
			}
		}

		codes := make([]string, 0, len(products))
		for code := range products {
			codes = append(codes, code)
		}
		sort.Strings(codes)

		for _, code := range codes {
			obs := make([]Observation, 0, len(selected))
			for _, run := range selected {
				obs = append(obs, Observation{
					RunID:      run.ID,
					CountType:  run.CountType,
					OwnerID:    run.OwnerID,
					OwnerLabel: run.OwnerLabel,
					Quantity:   qty[code][run.ID],
					ObservedAt: *run.CompletedAt,
				})
			}

			info := products[code]

			if retained, rule, ok := decide(obs, tolerance); ok {
				resolved = append(resolved, ResolvedOutput{
					ZoneID:      zoneID,
					ProductCode: code,
					ProductID:   info.id,
					ProductName: info.name,
					Quantity:    retained,
					Rule:        rule,
					ResolvedAt:  latestObservation(obs),
				})
				continue
			}

			conflicts = append(conflicts, ConflictOutput{
				ZoneID:       zoneID,
				ProductCode:  code,
				ProductID:    info.id,
				ProductName:  info.name,
				Observations: obs,
				Variance:     sampleVariance(obs),
			})
		}
	}

	return conflicts, resolved
}

// 解決ルールの適用。
//  1. 全観測が許容差内 → 「counts matched」。
//  2. 3観測あるなら2つが一致する値 → 「majority of three」。
//  3. どちらでもなければ未解決（3観測すべて不一致は人が裁く）。
func decide(obs []Observation, tolerance float64) (float64, string, bool) {
	if allWithinTolerance(obs, tolerance) {
		//採用値は最後に数えたランの値
		return latestQuantity(obs), RuleCountsMatched, true
	}

	if len(obs) >= 3 {
		for i := 0; i < len(obs); i++ {
			agree := 0
			for j := 0; j < len(obs); j++ {
				if withinTolerance(obs[i].Quantity, obs[j].Quantity, tolerance) {
					agree++
				}
			}
			if agree >= 2 {
				return obs[i].Quantity, RuleMajorityOfThree, true
			}
		}
	}

	return 0, "", false
}

func allWithinTolerance(obs []Observation, tolerance float64) bool {
	for i := 1; i < len(obs); i++ {
		if !withinTolerance(obs[0].Quantity, obs[i].Quantity, tolerance) {
			return false
		}
	}
	return true
}

func withinTolerance(a float64, b float64, tolerance float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

func latestQuantity(obs []Observation) float64 {
	best := obs[0]
	for _, o := range obs[1:] {
		if o.ObservedAt.After(best.ObservedAt) {
			best = o
		}
	}
	return best.Quantity
}

func latestObservation(obs []Observation) time.Time {
	best := obs[0].ObservedAt
	for _, o := range obs[1:] {
		if o.ObservedAt.After(best) {
			best = o.ObservedAt
		}
	}
	return best
}

// 観測数量の標本分散。観測が1つ以下なら0。
func sampleVariance(obs []Observation) float64 {
	n := float64(len(obs))
	if n < 2 {
		return 0
	}

	var sum float64
	for _, o := range obs {
		sum += o.Quantity
	}
	mean := sum / n

	var ss float64
	for _, o := range obs {
		d := o.Quantity - mean
		ss += d * d
	}
	return ss / (n - 1)
}
