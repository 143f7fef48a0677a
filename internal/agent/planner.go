package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rahul/webpilot/internal/observability"
	"github.com/rahul/webpilot/internal/schemas"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 1000
)

var (
	defaultAssumptions = []string{"Браузер закрыт", "Есть доступ в интернет"}
	unknownRisks       = []string{"Неизвестные риски"}

	errNoJSON     = errors.New("planner response contains no JSON object")
	errNoSubtasks = errors.New("plan has no subtasks")
)

// Planner turns a free-form task into a Plan. CreatePlan never fails; an
// unusable response yields FallbackPlan.
type Planner interface {
	CreatePlan(ctx context.Context, task string) schemas.Plan
}

// LLMPlanner asks a langchaingo model for a JSON plan.
type LLMPlanner struct {
	Model       llms.Model
	Prompts     *PromptManager
	Temperature float64
	MaxTokens   int
	logger      *zap.Logger
}

func NewLLMPlanner(model llms.Model, prompts *PromptManager, logger *zap.Logger) *LLMPlanner {
	return &LLMPlanner{
		Model:       model,
		Prompts:     prompts,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
		logger:      logger.Named("planner"),
	}
}

func (p *LLMPlanner) CreatePlan(ctx context.Context, task string) schemas.Plan {
	raw, err := p.generate(ctx, task)
	if err != nil {
		p.logger.Warn("planner request failed, using fallback plan", zap.Error(err))
		return p.logged(FallbackPlan(task), true)
	}

	plan, err := ParsePlan(raw, task)
	if err != nil {
		p.logger.Warn("planner response unusable, using fallback plan", zap.Error(err))
		return p.logged(FallbackPlan(task), true)
	}
	return p.logged(plan, false)
}

func (p *LLMPlanner) logged(plan schemas.Plan, fallback bool) schemas.Plan {
	observability.Audit(p.logger, observability.EventTypePlan, "plan created",
		zap.String("goal", plan.Goal),
		zap.Int("subtasks", len(plan.Subtasks)),
		zap.Bool("fallback", fallback),
	)
	return plan
}

func (p *LLMPlanner) generate(ctx context.Context, task string) (string, error) {
	var messages []llms.MessageContent

	system, err := p.Prompts.GetSystemPrompt()
	if err != nil {
		p.logger.Warn("failed to load planner prompt", zap.Error(err))
		system = defaultPlannerPrompt
	}
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeSystem,
		Parts: []llms.ContentPart{llms.TextPart(system)},
	})

	prompt := TaskPrompt(task)
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(prompt)},
	})

	resp, err := p.Model.GenerateContent(ctx, messages,
		llms.WithTemperature(p.Temperature),
		llms.WithMaxTokens(p.MaxTokens),
	)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from model")
	}

	content := resp.Choices[0].Content
	observability.Audit(p.logger, observability.EventTypeLLM, "planner response",
		zap.String("prompt", prompt),
		zap.String("response", content),
	)
	return content, nil
}

// FallbackPlan is the fixed four-step search plan used when the planner
// cannot produce a usable plan.
func FallbackPlan(task string) schemas.Plan {
	return schemas.Plan{
		Goal:        "Найти информацию: " + task,
		Assumptions: append([]string(nil), defaultAssumptions...),
		Subtasks: []schemas.Subtask{
			{
				ID:              1,
				Description:     "Открыть поисковую систему Яндекс",
				Capability:      schemas.CapabilityNavigate,
				SuccessCriteria: "Страница Яндекса загружена",
				Risks:           []string{"Сайт недоступен"},
			},
			{
				ID:              2,
				Description:     fmt.Sprintf("Ввести в поиск '%s'", task),
				Capability:      schemas.CapabilityInteract,
				SuccessCriteria: "Запрос введен в поисковую строку",
				Risks:           []string{"Поле поиска не найдено"},
			},
			{
				ID:              3,
				Description:     "Нажать кнопку поиска",
				Capability:      schemas.CapabilityInteract,
				SuccessCriteria: "Результаты поиска показаны",
				Risks:           []string{"Капча"},
			},
			{
				ID:              4,
				Description:     "Сохранить результаты поиска",
				Capability:      schemas.CapabilityInteract,
				SuccessCriteria: "Текст результатов сохранен",
				Risks:           []string{"Пустая страница"},
			},
		},
		Dependencies: "Последовательное выполнение",
	}
}

// ParsePlan extracts and normalises a plan from a model response. The JSON
// object is taken between the first '{' and the last '}'; malformed JSON is
// repaired before giving up.
func ParsePlan(raw, task string) (schemas.Plan, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return schemas.Plan{}, errNoJSON
	}
	body := raw[start : end+1]

	data := []byte(body)
	if !json.Valid(data) {
		repaired, err := jsonrepair.JSONRepair(body)
		if err != nil {
			return schemas.Plan{}, fmt.Errorf("decode plan: %w", err)
		}
		data = []byte(repaired)
	}
	decoded, err := decodeOrdered(data)
	if err != nil {
		return schemas.Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	doc, ok := decoded.(object)
	if !ok {
		return schemas.Plan{}, errNoSubtasks
	}

	items, _ := doc.get("subtasks").([]any)
	plan := schemas.Plan{
		Goal:         firstNonEmpty(asString(doc.get("main_goal")), asString(doc.get("goal")), task),
		Assumptions:  asList(doc.get("assumptions"), defaultAssumptions, object.firstString),
		Dependencies: asString(doc.get("dependencies")),
	}
	if len(plan.Assumptions) == 0 {
		plan.Assumptions = append([]string(nil), defaultAssumptions...)
	}

	for i, item := range items {
		m, ok := item.(object)
		if !ok {
			continue
		}
		plan.Subtasks = append(plan.Subtasks, normaliseSubtask(m, i+1))
	}
	if len(plan.Subtasks) == 0 {
		return schemas.Plan{}, errNoSubtasks
	}
	return plan, nil
}

func normaliseSubtask(m object, position int) schemas.Subtask {
	id, ok := asInt(m.get("id"))
	if !ok {
		id = position
	}
	desc := asString(m.get("description"))
	if desc == "" {
		desc = fmt.Sprintf("Подзадача %d", position)
	}
	criteria := asString(m.get("success_criteria"))
	if criteria == "" {
		criteria = "Успешно выполнено: " + desc
	}
	risks := m.get("potential_risks")
	if risks == nil {
		risks = m.get("risks")
	}

	return schemas.Subtask{
		ID:              id,
		Description:     desc,
		Capability:      schemas.ParseCapability(firstNonEmpty(asString(m.get("agent_type")), asString(m.get("capability")))),
		SuccessCriteria: criteria,
		Risks:           asList(risks, unknownRisks, object.first),
	}
}

// asString flattens scalars and degrades containers: a list is joined with
// "; ", an object collapses to its first value.
func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if s := asString(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case object:
		return asString(x.first())
	default:
		return fmt.Sprint(x)
	}
}

// asList coerces v into a string list. Objects, alone or as list entries,
// collapse to the value chosen by pick. Anything that is not a string, list
// or object yields fallback.
func asList(v any, fallback []string, pick func(object) any) []string {
	switch x := v.(type) {
	case string:
		if s := strings.TrimSpace(x); s != "" {
			return []string{s}
		}
		return []string{}
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if obj, ok := e.(object); ok {
				e = pick(obj)
			}
			if s := asString(e); s != "" {
				out = append(out, s)
			}
		}
		return out
	case object:
		if s := asString(pick(x)); s != "" {
			return []string{s}
		}
		return []string{}
	default:
		return append([]string(nil), fallback...)
	}
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		if x < 1 || x != float64(int(x)) {
			return 0, false
		}
		return int(x), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		return n, err == nil && n > 0
	}
	return 0, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
