package rtcsession

import (
	"fmt"
	"strconv"
	"strings"
)

const minCandidateTokens = 8

// CandidateInfo is the decomposed form of an ICE candidate attribute
// line, per spec §4.4's "Candidate string parsing" table.
type CandidateInfo struct {
	Foundation string
	Component  int
	Protocol   string
	Priority   int
	IP         string
	Port       int
	Type       string
}

// ParseCandidateLine decomposes a whitespace-separated ICE candidate
// line. A line with fewer than 8 tokens, or with a non-numeric
// component/priority/port, is invalid; the caller logs and drops it.
func ParseCandidateLine(line string) (*CandidateInfo, error) {
	tokens := strings.Fields(line)
	if len(tokens) < minCandidateTokens {
		return nil, fmt.Errorf("candidate line has %d tokens, need at least %d", len(tokens), minCandidateTokens)
	}

	foundationParts := strings.SplitN(tokens[0], ":", 2)
	foundation := foundationParts[len(foundationParts)-1]

	component, err := strconv.Atoi(tokens[1])
	if err != nil {
		return nil, fmt.Errorf("invalid component %q: %w", tokens[1], err)
	}
	priority, err := strconv.Atoi(tokens[3])
	if err != nil {
		return nil, fmt.Errorf("invalid priority %q: %w", tokens[3], err)
	}
	port, err := strconv.Atoi(tokens[5])
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", tokens[5], err)
	}

	return &CandidateInfo{
		Foundation: foundation,
		Component:  component,
		Protocol:   tokens[2],
		Priority:   priority,
		IP:         tokens[4],
		Port:       port,
		Type:       tokens[7],
	}, nil
}

// Line reconstructs a minimal candidate attribute line from its parsed
// fields, sufficient to round-trip through ParseCandidateLine.
func (c *CandidateInfo) Line() string {
	return fmt.Sprintf("candidate:%s %d %s %d %s %d typ %s",
		c.Foundation, c.Component, c.Protocol, c.Priority, c.IP, c.Port, c.Type)
}
