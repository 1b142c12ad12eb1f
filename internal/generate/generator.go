package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Errors the caller can classify for the issue log.
var (
	// ErrEmptyOutput means the provider returned a blank response.
	ErrEmptyOutput = errors.New("generator returned empty output")

	// ErrNoCodeBlock means the response had prose but no fenced code block.
	ErrNoCodeBlock = errors.New("generator response contains no code block")
)

// SystemPrompt teaches the generator the circuit DSL. Every capability the
// execution namespace binds is named here; anything else the model invents
// gets stripped or repaired downstream.
const SystemPrompt = `You are a circuit simulation assistant. Given a request, respond with a single fenced code block containing circuit code in this DSL, and nothing else.

Available primitives (already bound, never write imports or package clauses):

  circuit := NewCircuit("name")
  circuit.V("id", nodePlus, nodeMinus, u_V(5))                 constant voltage source
  circuit.PulseVoltageSource("id", np, nm, initial, pulsed, delay, rise, fall, width, period)
  circuit.SinusoidalVoltageSource("id", np, nm, u_V(1))        AC excitation
  circuit.R("id", np, nm, u_kOhm(1))                           resistor
  circuit.C("id", np, nm, u_nF(100))                           capacitor
  circuit.L("id", np, nm, u_mH(10))                            inductor
  simulator := circuit.Simulator()
  analysis := simulator.Transient(u_us(1), u_ms(5))            step, end time
  analysis := simulator.AC("dec", 20, u_Hz(1), u_kHz(100))     points/decade, start, stop

Unit tags: u_V u_mV u_A u_mA u_Ohm u_kOhm u_F u_nF u_pF u_H u_mH u_s u_ms u_us u_Hz u_kHz u_MHz u_GHz.

Rules:
- Node names are plain strings like "n1", "out". Use gnd for ground. Never name a node "in" or a Go keyword.
- Every numeric component value and analysis parameter must carry a unit tag.
- The result must be assigned to a variable named analysis.
- For transient analyses use PulseVoltageSource or SinusoidalVoltageSource, not a constant source.`

// Generator produces circuit source from natural-language requests.
type Generator struct {
	client LLMClient
	log    *zap.Logger
}

// New creates a generator. A nil logger disables logging.
func New(client LLMClient, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{client: client, log: log}
}

// Generate asks the provider for circuit code. context carries prior
// conversation or previously generated code and may be empty.
func (g *Generator) Generate(ctx context.Context, request, priorContext string) (string, error) {
	prompt := request
	if priorContext != "" {
		prompt = fmt.Sprintf("Context from earlier in this conversation:\n%s\n\nRequest: %s", priorContext, request)
	}

	raw, err := g.client.CompleteWithSystem(ctx, SystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyOutput
	}

	code := ExtractCode(raw)
	if code == "" {
		g.log.Warn("generator response had no code block", zap.Int("response_len", len(raw)))
		return "", ErrNoCodeBlock
	}
	g.log.Debug("generated circuit code", zap.Int("bytes", len(code)))
	return code, nil
}

// ExtractCode pulls the contents of the first fenced code block out of a
// response. The language tag after the opening fence is ignored. Returns ""
// when no complete block exists.
func ExtractCode(s string) string {
	start := strings.Index(s, "```")
	if start == -1 {
		return ""
	}
	// Skip the opening fence line, language tag included.
	nl := strings.Index(s[start:], "\n")
	if nl == -1 {
		return ""
	}
	body := s[start+nl+1:]

	end := strings.Index(body, "```")
	if end == -1 {
		return ""
	}
	return strings.TrimSpace(body[:end])
}
