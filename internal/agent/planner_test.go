package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/rahul/webpilot/internal/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

type fakeModel struct {
	response string
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, o := range options {
		o(&m.opts)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.response}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func newPlanner(model llms.Model) *LLMPlanner {
	return NewLLMPlanner(model, NewPromptManager(""), zap.NewNop())
}

func TestLLMPlanner_CreatePlan(t *testing.T) {
	model := &fakeModel{response: "Вот план:\n```json\n" + `{
		"main_goal": "Найти вакансии",
		"assumptions": ["Сайт доступен"],
		"subtasks": [
			{"id": 1, "description": "Открыть hh.ru", "agent_type": "navigator", "success_criteria": "Открыт", "potential_risks": ["Капча"]},
			{"id": 2, "description": "Ввести в поиск golang", "agent_type": "interactor"}
		],
		"dependencies": ["1 до 2", "2 после 1"]
	}` + "\n```"}

	plan := newPlanner(model).CreatePlan(context.Background(), "найти вакансии golang")

	assert.Equal(t, "Найти вакансии", plan.Goal)
	assert.Equal(t, []string{"Сайт доступен"}, plan.Assumptions)
	assert.Equal(t, "1 до 2; 2 после 1", plan.Dependencies)
	require.Len(t, plan.Subtasks, 2)
	assert.Equal(t, schemas.CapabilityNavigate, plan.Subtasks[0].Capability)
	assert.Equal(t, schemas.CapabilityInteract, plan.Subtasks[1].Capability)
	assert.Equal(t, "Успешно выполнено: Ввести в поиск golang", plan.Subtasks[1].SuccessCriteria)
	assert.Equal(t, unknownRisks, plan.Subtasks[1].Risks)

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, 0.1, model.opts.Temperature)
	assert.Equal(t, 1000, model.opts.MaxTokens)
}

func TestLLMPlanner_FallsBack(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeModel
	}{
		{"model error", &fakeModel{err: errors.New("connection refused")}},
		{"no json", &fakeModel{response: "I cannot help with that"}},
		{"no subtasks", &fakeModel{response: `{"main_goal": "x", "subtasks": []}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := newPlanner(tt.model).CreatePlan(context.Background(), "рецепт борща")

			assert.Equal(t, FallbackPlan("рецепт борща"), plan)
		})
	}
}

func TestFallbackPlan(t *testing.T) {
	plan := FallbackPlan("рецепт борща")

	assert.Equal(t, "Найти информацию: рецепт борща", plan.Goal)
	assert.Equal(t, []string{"Браузер закрыт", "Есть доступ в интернет"}, plan.Assumptions)
	require.Len(t, plan.Subtasks, 4)
	assert.Equal(t, "Ввести в поиск 'рецепт борща'", plan.Subtasks[1].Description)
	for i, st := range plan.Subtasks {
		assert.Equal(t, i+1, st.ID)
	}
	assert.Equal(t, schemas.CapabilityNavigate, plan.Subtasks[0].Capability)
}

func TestParsePlan_Normalisation(t *testing.T) {
	raw := `{
		"goal": "g",
		"assumptions": {"main": "Пользователь вошел"},
		"subtasks": [
			{"description": "Открыть сайт", "agent_type": "navigator", "potential_risks": "Таймаут"},
			"not an object",
			{"id": "7", "agent_type": "validator", "potential_risks": {"a": "Пусто"}},
			{"id": 2.5, "description": "Прокрутить", "agent_type": "interactor", "potential_risks": 42}
		],
		"dependencies": "Последовательно"
	}`

	plan, err := ParsePlan(raw, "task")
	require.NoError(t, err)

	assert.Equal(t, "g", plan.Goal)
	assert.Equal(t, []string{"Пользователь вошел"}, plan.Assumptions)
	require.Len(t, plan.Subtasks, 3)

	assert.Equal(t, 1, plan.Subtasks[0].ID)
	assert.Equal(t, []string{"Таймаут"}, plan.Subtasks[0].Risks)

	assert.Equal(t, 7, plan.Subtasks[1].ID)
	assert.Equal(t, "Подзадача 3", plan.Subtasks[1].Description)
	assert.Equal(t, schemas.CapabilityValidate, plan.Subtasks[1].Capability)
	assert.Equal(t, []string{"Пусто"}, plan.Subtasks[1].Risks)

	assert.Equal(t, 4, plan.Subtasks[2].ID)
	assert.Equal(t, unknownRisks, plan.Subtasks[2].Risks)
}

func TestParsePlan_ObjectEntriesKeepDocumentOrder(t *testing.T) {
	raw := `{
		"assumptions": [
			{"text": "Браузер открыт", "priority": "low"},
			{"weight": 3, "note": "Есть интернет"},
			{"weight": 1}
		],
		"subtasks": [
			{"description": "Открыть hh.ru", "agent_type": "navigator",
			 "potential_risks": [{"risk": "Капча", "level": "high"}, {"z": "Таймаут", "a": "x"}]},
			{"description": "Ввести запрос", "agent_type": "interactor",
			 "potential_risks": {"severity": 2, "risk": "Поле не найдено"}}
		]
	}`

	plan, err := ParsePlan(raw, "task")
	require.NoError(t, err)

	assert.Equal(t, []string{"Браузер открыт", "Есть интернет"}, plan.Assumptions)
	require.Len(t, plan.Subtasks, 2)
	assert.Equal(t, []string{"Капча", "Таймаут"}, plan.Subtasks[0].Risks)
	assert.Equal(t, []string{"2"}, plan.Subtasks[1].Risks)
}

func TestDecodeOrdered(t *testing.T) {
	v, err := decodeOrdered([]byte(`{"b": 1, "a": [true, null, "s"], "b": 2}`))
	require.NoError(t, err)

	obj, ok := v.(object)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, obj.keys)
	assert.Equal(t, 2.0, obj.get("b"))
	assert.Equal(t, []any{true, nil, "s"}, obj.get("a"))

	_, err = decodeOrdered([]byte(`{"a": 1} {"b": 2}`))
	assert.ErrorIs(t, err, errTrailingData)
}

func TestParsePlan_RepairsJSON(t *testing.T) {
	raw := `{"main_goal": "g", "subtasks": [{"id": 1, "description": "Открыть ya.ru", "agent_type": "navigator",},],}`

	plan, err := ParsePlan(raw, "task")
	require.NoError(t, err)
	require.Len(t, plan.Subtasks, 1)
	assert.Equal(t, "Открыть ya.ru", plan.Subtasks[0].Description)
	assert.Equal(t, defaultAssumptions, plan.Assumptions)
	assert.Equal(t, "g", plan.Goal)
}

func TestParsePlan_GoalDefaultsToTask(t *testing.T) {
	plan, err := ParsePlan(`{"subtasks": [{"description": "x"}]}`, "задача")
	require.NoError(t, err)
	assert.Equal(t, "задача", plan.Goal)
}
