package tool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	bankdatax "github.com/agilbank/concierge/agent/bankdata"
	contractx "github.com/agilbank/concierge/agent/contract"
)

const (
	ToolCalculateCreditScore = "calculate_credit_score"
	ToolUpdateCustomerScore  = "update_customer_score"
)

// Score formula weights. Income contributes proportionally to how much of
// it survives fixed expenses; the remaining factors are flat adjustments.
const (
	incomeWeight         = 30
	employmentFormal     = 300
	employmentSelf       = 200
	employmentUnemployed = 0
	dependentsThreePlus  = 30
	debtsPenalty         = -100
	debtsBonus           = 100

	scoreMin = 0
	scoreMax = 1000
)

var dependentsWeight = map[int]int{0: 100, 1: 80, 2: 60}

func calculateScoreDef() contractx.ToolDefinition {
	return contractx.ToolDefinition{
		Name: ToolCalculateCreditScore,
		Description: "Calculate a credit score from interview answers: income, employment type, " +
			"fixed expenses, dependents and outstanding debts.",
		Params: map[string]contractx.ParameterInfo{
			"monthly_income":  {Type: contractx.ParamNumber, Description: "Gross monthly income", Required: true},
			"employment_type": {Type: contractx.ParamString, Description: "One of: formal, self_employed, unemployed", Required: true},
			"fixed_expenses":  {Type: contractx.ParamNumber, Description: "Monthly fixed expenses", Required: true},
			"num_dependents":  {Type: contractx.ParamInteger, Description: "Number of dependents", Required: true},
			"has_debts":       {Type: contractx.ParamString, Description: "Outstanding debts: yes or no", Required: true},
		},
	}
}

func newCalculateScoreHandler() Handler {
	return func(_ context.Context, args map[string]any) (Outcome, error) {
		income, err := floatArg(args, "monthly_income")
		if err != nil {
			return scoreError(err.Error()), nil
		}
		employment, err := stringArg(args, "employment_type")
		if err != nil {
			return scoreError(err.Error()), nil
		}
		expenses, err := floatArg(args, "fixed_expenses")
		if err != nil {
			return scoreError(err.Error()), nil
		}
		dependents, err := intArg(args, "num_dependents")
		if err != nil {
			return scoreError(err.Error()), nil
		}
		debts, err := stringArg(args, "has_debts")
		if err != nil {
			return scoreError(err.Error()), nil
		}

		if income < 0 {
			return scoreError("monthly income cannot be negative"), nil
		}
		if expenses < 0 {
			return scoreError("fixed expenses cannot be negative"), nil
		}
		if dependents < 0 {
			return scoreError("number of dependents cannot be negative"), nil
		}

		var employmentPoints int
		switch strings.ToLower(employment) {
		case "formal":
			employmentPoints = employmentFormal
		case "self_employed":
			employmentPoints = employmentSelf
		case "unemployed":
			employmentPoints = employmentUnemployed
		default:
			return scoreError(fmt.Sprintf("invalid employment type %q; use formal, self_employed or unemployed", employment)), nil
		}

		var debtsPoints int
		switch strings.ToLower(debts) {
		case "yes":
			debtsPoints = debtsPenalty
		case "no":
			debtsPoints = debtsBonus
		default:
			return scoreError(fmt.Sprintf("invalid debts answer %q; use yes or no", debts)), nil
		}

		dependentsPoints, ok := dependentsWeight[dependents]
		if !ok {
			dependentsPoints = dependentsThreePlus
		}

		incomePoints := income / (expenses + 1) * incomeWeight
		score := int(math.Round(incomePoints)) + employmentPoints + dependentsPoints + debtsPoints
		if score < scoreMin {
			score = scoreMin
		}
		if score > scoreMax {
			score = scoreMax
		}

		return Outcome{
			Text:   fmt.Sprintf("SCORE_CALCULATED: %d. Based on the answers given during the interview.", score),
			Effect: noEffect(),
		}, nil
	}
}

func scoreError(detail string) Outcome {
	return Outcome{Text: "ERROR: " + detail + ".", Effect: noEffect()}
}

func updateScoreDef() contractx.ToolDefinition {
	return contractx.ToolDefinition{
		Name:        ToolUpdateCustomerScore,
		Description: "Persist a recalculated credit score for the customer.",
		Params: map[string]contractx.ParameterInfo{
			"customer_id": {Type: contractx.ParamString, Description: "Customer id, 11 digits", Required: true},
			"new_score":   {Type: contractx.ParamInteger, Description: "Recalculated score, 0-1000", Required: true},
		},
	}
}

func newUpdateScoreHandler(gw bankdatax.Gateway) Handler {
	return func(ctx context.Context, args map[string]any) (Outcome, error) {
		id, err := stringArg(args, "customer_id")
		if err != nil {
			return Outcome{Text: "ERROR: " + err.Error() + ".", Effect: noEffect()}, nil
		}
		newScore, err := intArg(args, "new_score")
		if err != nil {
			return Outcome{Text: "ERROR: " + err.Error() + ".", Effect: noEffect()}, nil
		}
		if newScore < scoreMin || newScore > scoreMax {
			return Outcome{Text: fmt.Sprintf("ERROR: score %d is out of the 0-1000 range.", newScore), Effect: noEffect()}, nil
		}
		cleaned, _ := normalizeCustomerID(id)

		rec, err := gw.GetCustomer(ctx, cleaned)
		if errors.Is(err, contractx.ErrCustomerNotFound) {
			return Outcome{Text: "ERROR: customer not found in the customer base.", Effect: noEffect()}, nil
		}
		if err != nil {
			log.Error().Err(err).Msg("score update: customer lookup failed")
			return Outcome{}, err
		}

		previous := rec.Score
		rec.Score = newScore
		if err := gw.PutCustomer(ctx, rec); err != nil {
			log.Error().Err(err).Msg("score update: persisting new score failed")
			return Outcome{}, err
		}

		return Outcome{
			Text:   fmt.Sprintf("UPDATED: customer score updated. Previous score: %d. New score: %d.", previous, newScore),
			Effect: contractx.Effect{Kind: contractx.EffectUpdateScore, Score: newScore},
		}, nil
	}
}
