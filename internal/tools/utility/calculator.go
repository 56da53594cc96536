// Package utility provides small stateless tools: calculator, datetime and
// random.
package utility

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/pkg/models"
)

// CalculatorInput is the argument shape of the calculator tool.
type CalculatorInput struct {
	Operation string  `json:"operation" jsonschema:"enum=add,enum=subtract,enum=multiply,enum=divide,description=The math operation"`
	A         float64 `json:"a" jsonschema:"description=First operand"`
	B         float64 `json:"b" jsonschema:"description=Second operand"`
}

// CalculatorOutput is the data payload of a successful calculation.
type CalculatorOutput struct {
	Operation  string  `json:"operation"`
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

// NewCalculator returns the calculator tool.
func NewCalculator() *agent.TypedTool[CalculatorInput] {
	return agent.NewTypedTool[CalculatorInput]("calculator",
		"Perform math calculations: add, subtract, multiply, divide", false, calculate)
}

func calculate(_ context.Context, _ *agent.ExecutionContext, in CalculatorInput) (models.ToolResult, error) {
	var result float64
	var symbol string
	switch in.Operation {
	case "add":
		result, symbol = in.A+in.B, "+"
	case "subtract":
		result, symbol = in.A-in.B, "-"
	case "multiply":
		result, symbol = in.A*in.B, "×"
	case "divide":
		if in.B == 0 {
			return models.ToolFailure("cannot divide by zero"), nil
		}
		result, symbol = in.A/in.B, "÷"
	default:
		return models.ToolFailure("unknown operation " + in.Operation), nil
	}
	if math.IsInf(result, 0) || math.IsNaN(result) {
		return models.ToolFailure("result is out of range"), nil
	}
	return models.ToolSuccess(CalculatorOutput{
		Operation:  in.Operation,
		Expression: fmt.Sprintf("%s %s %s", formatNumber(in.A), symbol, formatNumber(in.B)),
		Result:     result,
	}), nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
