package contracts

import (
	"sort"
	"strings"

	"github.com/crytic/contest/compilation/types"
	"github.com/crytic/contest/fuzzing/utils"
	"github.com/crytic/medusa-geth/accounts/abi"
)

// Contracts describes the known contracts of a project.
type Contracts []*types.CompiledContract

// MatchBytecode takes runtime bytecode and attempts to match it to a contract definition in the current list of
// contracts. It returns the contract definition if found. Otherwise, it returns nil.
func (c Contracts) MatchBytecode(runtimeBytecode []byte) *types.CompiledContract {
	for i := 0; i < len(c); i++ {
		if c[i].IsMatch(runtimeBytecode) {
			return c[i]
		}
	}
	return nil
}

// Contract describes a contract targeted by an invariant campaign.
type Contract struct {
	// name represents the name of the contract.
	name string

	// abi describes the interface of the contract.
	abi *abi.ABI

	// candidateMethods are the methods that can be called on the contract after targeting/excluding is performed,
	// sorted by signature.
	candidateMethods []abi.Method
}

// NewContract returns a new Contract whose candidate methods are its state-mutating methods, excluding test entry
// points.
func NewContract(name string, contractAbi *abi.ABI) *Contract {
	methods := make([]abi.Method, 0, len(contractAbi.Methods))
	for _, method := range contractAbi.Methods {
		if method.IsConstant() || utils.IsTestEntryPoint(method) {
			continue
		}
		methods = append(methods, method)
	}
	sort.Slice(methods, func(i, j int) bool {
		return methods[i].Sig < methods[j].Sig
	})
	return &Contract{
		name:             name,
		abi:              contractAbi,
		candidateMethods: methods,
	}
}

// canonicalSignature returns the "<contract>.<signature>" form used by target and exclusion lists.
func (c *Contract) canonicalSignature(method abi.Method) string {
	return strings.Join([]string{c.name, method.Sig}, ".")
}

// WithTargetMethods restricts the candidate methods to those listed as "<contract>.<signature>". An empty list
// leaves the candidates untouched.
func (c *Contract) WithTargetMethods(target []string) *Contract {
	if len(target) == 0 {
		return c
	}
	var candidateMethods []abi.Method
	for _, method := range c.candidateMethods {
		if containsMethod(target, c.canonicalSignature(method)) {
			candidateMethods = append(candidateMethods, method)
		}
	}
	c.candidateMethods = candidateMethods
	return c
}

// WithExcludedMethods removes the candidate methods listed as "<contract>.<signature>".
func (c *Contract) WithExcludedMethods(excludedMethods []string) *Contract {
	var candidateMethods []abi.Method
	for _, method := range c.candidateMethods {
		if !containsMethod(excludedMethods, c.canonicalSignature(method)) {
			candidateMethods = append(candidateMethods, method)
		}
	}
	c.candidateMethods = candidateMethods
	return c
}

func containsMethod(methods []string, target string) bool {
	for _, method := range methods {
		if method == target {
			return true
		}
	}
	return false
}

// Name returns the name of the contract.
func (c *Contract) Name() string {
	return c.name
}

// Abi returns the interface of the contract.
func (c *Contract) Abi() *abi.ABI {
	return c.abi
}

// CandidateMethods returns the methods that can be called on the contract after targeting/excluding is performed.
func (c *Contract) CandidateMethods() []abi.Method {
	return c.candidateMethods
}
