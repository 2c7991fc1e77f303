package usecase

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/validator"

	"github.com/labstack/gommon/log"
)

// ラン（棚卸カウント）のライフサイクル管理。
// Start / Complete / Restart / Release の4操作。
// CountingRun・CountLineの書き込みはすべてここを通る。
type RunUsecase struct {
	tx    repo.TransactionManager
	audit repo.AuditLogRepository
	clock Clock

	//falseなら旧スキーマ互換: owner判定をowner_labelで行う
	ownerTracking bool
}

func NewRunUsecase(tx repo.TransactionManager, audit repo.AuditLogRepository, clock Clock, cfg config.Config) *RunUsecase {
	return &RunUsecase{
		tx:            tx,
		audit:         audit,
		clock:         clock,
		ownerTracking: cfg.OwnerTrackingEnabled,
	}
}

type StartRunInput struct {
	ZoneID    int64
	ShopID    int64
	CountType int
}

type RunOutput struct {
	RunID      int64     `json:"run_id"`
	SessionID  int64     `json:"session_id"`
	ZoneID     int64     `json:"zone_id"`
	CountType  int       `json:"count_type"`
	OwnerID    int64     `json:"owner_id"`
	OwnerLabel string    `json:"owner_label"`
	StartedAt  time.Time `json:"started_at"`

	//同じownerの再入でtrue（新規行は作っていない）
	Resumed bool `json:"resumed"`
}

// カウント開始。
// 「openなランがあるかの確認」と「新規作成」はゾーン行ロックを
// 持った同一トランザクション内で行う。別々のcallerが同時に来ても
// 片方しか作れない。
func (u *RunUsecase) Start(ctx context.Context, ownerID int64, in StartRunInput) (RunOutput, error) {
	if ownerID <= 0 {
		return RunOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if in.ZoneID <= 0 || in.ShopID <= 0 {
		return RunOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidationFailed, "invalid zone or shop id")
	}
	if !model.IsValidCountType(in.CountType) {
		return RunOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidationFailed, "count_type must be 1, 2 or 3")
	}

	var out RunOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//ゾーン行をFOR UPDATEでロック。同じゾーンのStartはここで直列化。
		zone, err := r.Zones().FindByIDForUpdate(ctx, in.ZoneID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if zone == nil || zone.ShopID != in.ShopID {
			return NewHTTPError(http.StatusNotFound, CodeLocationNotFound, "location not found")
		}
		if zone.Disabled {
			return NewHTTPError(http.StatusBadRequest, CodeLocationDisabled, "location is disabled")
		}

		//ownerは同じ店舗の有効なオペレーターであること
		owner, err := r.Users().FindByID(ctx, ownerID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if owner == nil || !owner.IsActive || owner.ShopID != in.ShopID {
			return NewHTTPError(http.StatusForbidden, CodeOwnerInvalid, "owner is not an enabled member of this shop")
		}

		//二次カウントは一次カウント完了後にしか始められない
		//（タイブレークの3には前提なし）
		if in.CountType == model.CountTypeSecond {
			has, err := r.Runs().HasCompletedByZoneAndType(ctx, zone.ID, model.CountTypeFirst)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}
			if !has {
				return NewHTTPError(http.StatusBadRequest, CodeSequentialPrerequisiteMissing, "first count must be completed before starting the second")
			}
		}

		open, err := r.Runs().FindOpenByZoneAndType(ctx, zone.ID, in.CountType)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		if open != nil {
			//同じownerなら再入（冪等）。新規行は作らない。
			if u.sameOwner(open, owner) {
				out = toRunOutput(*open, true)
				return nil
			}

			//他のownerが数えている最中。表示名を返してUIに出す。
			label := u.resolveOwnerLabel(ctx, r, open)
			return NewHTTPErrorWithDetails(http.StatusConflict, CodeConflictOtherOwner,
				"another owner is counting this zone",
				map[string]interface{}{"owner_label": label})
		}

		now := u.clock.Now()

		//店舗に開いているセッションが無ければ暗黙に作る
		sessionID, err := u.resolveOpenSession(ctx, r, in.ShopID, now)
		if err != nil {
			return err
		}

		run := model.CountingRun{
			SessionID:  sessionID,
			ZoneID:     zone.ID,
			CountType:  in.CountType,
			OwnerID:    owner.ID,
			OwnerLabel: owner.DisplayName,
			StartedAt:  now,
		}
		runID, err := r.Runs().Create(ctx, run)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		run.ID = runID
		out = toRunOutput(run, false)
		return nil
	})

	if err != nil {
		return RunOutput{}, err
	}

	if !out.Resumed {
		u.writeAudit(ctx, ownerID, model.AuditActionStartRun, model.AuditResourceRun, out.RunID, nil, out)
	}
	return out, nil
}

type CompleteRunInput struct {
	ZoneID    int64
	CountType int

	//省略可。指定された場合はopenなランと一致していること。
	RunID *int64

	//省略時は現在時刻
	CompletedAt *time.Time

	Lines []validator.ScanLine
}

type CompleteRunOutput struct {
	RunID         int64     `json:"run_id"`
	SessionID     int64     `json:"session_id"`
	ZoneID        int64     `json:"zone_id"`
	CountType     int       `json:"count_type"`
	CompletedAt   time.Time `json:"completed_at"`
	ItemCount     int       `json:"item_count"`
	TotalQuantity float64   `json:"total_quantity"`
}

// カウント完了。生スキャン明細を検証→集約してからランに保存する。
// 重複スキャンはここで商品ごとに合算され、生明細は保存されない。
func (u *RunUsecase) Complete(ctx context.Context, ownerID int64, in CompleteRunInput) (CompleteRunOutput, error) {
	if ownerID <= 0 {
		return CompleteRunOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if in.ZoneID <= 0 {
		return CompleteRunOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidationFailed, "invalid zone id")
	}
	if !model.IsValidCountType(in.CountType) {
		return CompleteRunOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidationFailed, "count_type must be 1, 2 or 3")
	}
	if len(in.Lines) == 0 {
		return CompleteRunOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidationFailed, "no lines")
	}

	//行単位で検証。1行でも不正ならエラー行の一覧を返して全体を弾く。
	if lineErrs := validator.ValidateScanLines(in.Lines); len(lineErrs) > 0 {
		return CompleteRunOutput{}, NewHTTPErrorWithDetails(http.StatusBadRequest, CodeValidationFailed,
			"invalid lines", map[string]interface{}{"lines": lineErrs})
	}

	//正規化コードごとに合算。manualはORで引き継ぐ。
	agg := aggregateScanLines(in.Lines)
	if len(agg) == 0 {
		return CompleteRunOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidationFailed, "no lines")
	}

	completedAt := u.clock.Now()
	if in.CompletedAt != nil {
		completedAt = *in.CompletedAt
	}

	var out CompleteRunOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		zone, err := r.Zones().FindByID(ctx, in.ZoneID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if zone == nil {
			return NewHTTPError(http.StatusNotFound, CodeLocationNotFound, "location not found")
		}

		owner, err := r.Users().FindByID(ctx, ownerID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if owner == nil || !owner.IsActive {
			return NewHTTPError(http.StatusForbidden, CodeOwnerInvalid, "owner is not enabled")
		}

		//対象のopenなランを特定する
		run, err := u.resolveOpenRun(ctx, r, in, owner)
		if err != nil {
			return err
		}

		//集約結果をカタログで解決して明細を作る
		lines := make([]model.CountLine, 0, len(agg))
		var total float64
		for _, a := range agg {
			line := model.CountLine{
				RunID:       run.ID,
				ProductCode: a.Code,
				Quantity:    a.Quantity,
				Manual:      a.Manual,
			}

			p, err := r.Products().FindByShopAndSKU(ctx, zone.ShopID, a.Code)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
			}
			if p == nil {
				p, err = r.Products().FindByShopAndEAN(ctx, zone.ShopID, a.Code)
				if err != nil {
					return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
				}
			}
			if p != nil {
				id := p.ID
				line.ProductID = &id
				line.ProductName = p.Name
				line.EAN = p.EAN
			}

			lines = append(lines, line)
			total += a.Quantity
		}

		if err := r.CountLines().CreateBulk(ctx, lines); err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		//openなランだけを完了にできる。0件更新なら直前に誰かが閉じた。
		ok, err := r.Runs().MarkCompleted(ctx, run.ID, completedAt)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if !ok {
			return NewHTTPError(http.StatusNotFound, CodeRunNotFound, "run not found")
		}

		out = CompleteRunOutput{
			RunID:         run.ID,
			SessionID:     run.SessionID,
			ZoneID:        run.ZoneID,
			CountType:     run.CountType,
			CompletedAt:   completedAt,
			ItemCount:     len(lines),
			TotalQuantity: total,
		}
		return nil
	})

	if err != nil {
		return CompleteRunOutput{}, err
	}

	u.writeAudit(ctx, ownerID, model.AuditActionCompleteRun, model.AuditResourceRun, out.RunID, nil, out)
	return out, nil
}

type RestartRunInput struct {
	ZoneID    int64
	CountType int

	//省略時は現在時刻
	RestartedAt *time.Time
}

type RestartRunOutput struct {
	ZoneID    int64 `json:"zone_id"`
	CountType int   `json:"count_type"`

	//閉じたopenランの数。0なら「何も開いていなかった」
	ClosedRuns int64 `json:"closed_runs"`
	Restarted  bool  `json:"restarted"`
}

// リスタート。(zone, countType)のopenなランをowner問わず閉じて
// スロットを空ける。明細は一切書かない。openが無くてもエラーにしない。
func (u *RunUsecase) Restart(ctx context.Context, ownerID int64, in RestartRunInput) (RestartRunOutput, error) {
	if ownerID <= 0 {
		return RestartRunOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if in.ZoneID <= 0 {
		return RestartRunOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidationFailed, "invalid zone id")
	}
	if !model.IsValidCountType(in.CountType) {
		return RestartRunOutput{}, NewHTTPError(http.StatusBadRequest, CodeValidationFailed, "count_type must be 1, 2 or 3")
	}

	restartedAt := u.clock.Now()
	if in.RestartedAt != nil {
		restartedAt = *in.RestartedAt
	}

	var out RestartRunOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//Startと同じロックを取って直列化する
		zone, err := r.Zones().FindByIDForUpdate(ctx, in.ZoneID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if zone == nil {
			return NewHTTPError(http.StatusNotFound, CodeLocationNotFound, "location not found")
		}

		closed, err := r.Runs().CloseOpenByZoneAndType(ctx, zone.ID, in.CountType, restartedAt)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		out = RestartRunOutput{
			ZoneID:     zone.ID,
			CountType:  in.CountType,
			ClosedRuns: closed,
			Restarted:  closed > 0,
		}
		return nil
	})

	if err != nil {
		return RestartRunOutput{}, err
	}

	u.writeAudit(ctx, ownerID, model.AuditActionRestartRun, model.AuditResourceZone, out.ZoneID, nil, out)
	return out, nil
}

type ReleaseRunInput struct {
	ZoneID int64
	RunID  int64
}

// ランの破棄。自分のopenなランだけを破棄できる。明細は残らない。
// 「1個スキャンしてやめた」ケースのための操作。
func (u *RunUsecase) Release(ctx context.Context, ownerID int64, in ReleaseRunInput) error {
	if ownerID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if in.ZoneID <= 0 || in.RunID <= 0 {
		return NewHTTPError(http.StatusBadRequest, CodeValidationFailed, "invalid id")
	}

	releasedAt := u.clock.Now()

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		run, err := r.Runs().FindByID(ctx, in.RunID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if run == nil || run.ZoneID != in.ZoneID || !run.IsOpen() {
			return NewHTTPError(http.StatusNotFound, CodeRunNotFound, "run not found")
		}

		owner, err := r.Users().FindByID(ctx, ownerID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if owner == nil || !u.sameOwner(run, owner) {
			return NewHTTPError(http.StatusForbidden, CodeNotOwner, "run belongs to another owner")
		}

		ok, err := r.Runs().MarkReleased(ctx, run.ID, releasedAt)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if !ok {
			return NewHTTPError(http.StatusNotFound, CodeRunNotFound, "run not found")
		}
		return nil
	})

	if err != nil {
		return err
	}

	u.writeAudit(ctx, ownerID, model.AuditActionReleaseRun, model.AuditResourceRun, in.RunID, nil, nil)
	return nil
}

// 店舗の開いているセッションのIDを返す。無ければ作る。
// 「開いているセッションは店舗ごとに最大1件」はDBの部分ユニークインデックスが
// 担保する。ゾーンロックは店舗をまたがないので、別ゾーンの同時Startどうしは
// ここで競合し得る。負けた側はErrOpenSessionExistsを受けて読み直し、
// 勝った側のセッションに相乗りする。
func (u *RunUsecase) resolveOpenSession(ctx context.Context, r repo.TxRepos, shopID int64, now time.Time) (int64, error) {
	session, err := r.Sessions().FindOpenByShop(ctx, shopID)
	if err != nil {
		return 0, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	if session != nil {
		return session.ID, nil
	}

	sessionID, err := r.Sessions().Create(ctx, model.InventorySession{
		ShopID:    shopID,
		StartedAt: now,
	})
	if err == nil {
		return sessionID, nil
	}
	if err != repo.ErrOpenSessionExists {
		return 0, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	//先を越された。コミット済みの開いているセッションを読み直して使う。
	session, err = r.Sessions().FindOpenByShop(ctx, shopID)
	if err != nil || session == nil {
		return 0, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	return session.ID, nil
}

// Complete対象のopenなランを特定する。
// run_id指定があればそれと一致していること、無ければ(zone, countType)の
// openなラン。どちらもownerが本人でなければ「無い」扱い。
func (u *RunUsecase) resolveOpenRun(ctx context.Context, r repo.TxRepos, in CompleteRunInput, owner *model.User) (*model.CountingRun, error) {
	if in.RunID != nil {
		run, err := r.Runs().FindByID(ctx, *in.RunID)
		if err != nil {
			return nil, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}
		if run == nil || !run.IsOpen() || run.ZoneID != in.ZoneID ||
			run.CountType != in.CountType || !u.sameOwner(run, owner) {
			return nil, NewHTTPError(http.StatusNotFound, CodeRunNotFound, "run not found")
		}
		return run, nil
	}

	run, err := r.Runs().FindOpenByZoneAndType(ctx, in.ZoneID, in.CountType)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	if run == nil || !u.sameOwner(run, owner) {
		return nil, NewHTTPError(http.StatusNotFound, CodeRunNotFound, "run not found")
	}
	return run, nil
}

// owner本人かどうか。旧スキーマ互換モードでは表示名で比較する。
func (u *RunUsecase) sameOwner(run *model.CountingRun, owner *model.User) bool {
	if u.ownerTracking {
		return run.OwnerID == owner.ID
	}
	return run.OwnerLabel == owner.DisplayName
}

// 衝突相手の表示名。owner追跡が有効なら最新の表示名を引き直し、
// 無効ならランに残したスナップショットを使う。
func (u *RunUsecase) resolveOwnerLabel(ctx context.Context, r repo.TxRepos, run *model.CountingRun) string {
	if u.ownerTracking {
		other, err := r.Users().FindByID(ctx, run.OwnerID)
		if err == nil && other != nil {
			return other.DisplayName
		}
	}
	return run.OwnerLabel
}

// 監査ログは失敗しても操作を失敗させない。warningを出すだけ。
func (u *RunUsecase) writeAudit(ctx context.Context, actorID int64, action model.AuditAction,
	resourceType model.AuditResourceType, resourceID int64, before interface{}, after interface{}) {

	entry := model.AuditLog{
		ActorUserID:  actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		BeforeJSON:   toJSON(before),
		AfterJSON:    toJSON(after),
		CreatedAt:    u.clock.Now(),
	}

	if err := u.audit.Create(ctx, entry); err != nil {
		log.Warnf("audit log write failed: action=%s resource=%d err=%v", action, resourceID, err)
	}
}

func toJSON(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func toRunOutput(run model.CountingRun, resumed bool) RunOutput {
	return RunOutput{
		RunID:      run.ID,
		SessionID:  run.SessionID,
		ZoneID:     run.ZoneID,
		CountType:  run.CountType,
		OwnerID:    run.OwnerID,
		OwnerLabel: run.OwnerLabel,
		StartedAt:  run.StartedAt,
		Resumed:    resumed,
	}
}

// 正規化コードごとに数量を合算した行
type aggregatedLine struct {
	Code     string
	Quantity float64
	Manual   bool
}

// 生スキャン明細を商品コードごとに集約する。
// 数量は合算、manualは1行でもtrueならtrue。空コードは落とす。
// 出力はコード順で安定させる。
func aggregateScanLines(lines []validator.ScanLine) []aggregatedLine {
	index := make(map[string]int, len(lines))
	var out []aggregatedLine

	for _, ln := range lines {
		code := validator.NormalizeCode(ln.Code)
		if code == "" {
			continue
		}

		if i, ok := index[code]; ok {
			out[i].Quantity += ln.Quantity
			out[i].Manual = out[i].Manual || ln.Manual
			continue
		}

		index[code] = len(out)
		out = append(out, aggregatedLine{
			Code:     code,
			Quantity: ln.Quantity,
			Manual:   ln.Manual,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
