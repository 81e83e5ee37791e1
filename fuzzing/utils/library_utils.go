package utils

import (
	"container/heap"
	"fmt"

	"github.com/crytic/contest/compilation/types"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/crypto"
	"golang.org/x/exp/slices"
)

// LinkedDeployment describes a contract whose library references were resolved against predicted library
// addresses, along with the linked libraries in the order they must be deployed.
type LinkedDeployment struct {
	// Libraries holds the linked libraries in deployment order.
	Libraries []*types.CompiledContract

	// LibraryAddresses maps each library's fully qualified name to the address it will be deployed at.
	LibraryAddresses map[string]common.Address

	// Contract is the linked contract.
	Contract *types.CompiledContract
}

// LibraryBytecodes returns the init bytecode of every library, in deployment order.
func (d *LinkedDeployment) LibraryBytecodes() ([][]byte, error) {
	bytecodes := make([][]byte, 0, len(d.Libraries))
	for _, library := range d.Libraries {
		b, err := library.InitBytecode()
		if err != nil {
			return nil, err
		}
		bytecodes = append(bytecodes, b)
	}
	return bytecodes, nil
}

// LibraryDependencies walks the library references of contract and returns the dependency graph of every library
// it transitively needs, keyed by fully qualified name. knownContracts is keyed by fully qualified name too.
func LibraryDependencies(contract *types.CompiledContract, knownContracts map[string]*types.CompiledContract) (map[string][]string, error) {
	dependencies := make(map[string][]string)
	pending := contract.Libraries()
	for len(pending) > 0 {
		name := pending[0]
		pending = pending[1:]
		if _, seen := dependencies[name]; seen {
			continue
		}
		library, ok := knownContracts[name]
		if !ok {
			return nil, fmt.Errorf("contract %s links against unknown library %s", contract.Name, name)
		}
		dependencies[name] = library.Libraries()
		pending = append(pending, dependencies[name]...)
	}
	return dependencies, nil
}

// LinkContract resolves the library references of contract. Libraries are deployed by deployer in dependency order
// starting at startNonce, so their addresses are the CREATE addresses for those nonces. A contract without library
// references is returned unchanged with no libraries.
func LinkContract(contract *types.CompiledContract, knownContracts map[string]*types.CompiledContract, deployer common.Address, startNonce uint64) (*LinkedDeployment, error) {
	dependencies, err := LibraryDependencies(contract, knownContracts)
	if err != nil {
		return nil, err
	}
	order, err := GetDeploymentOrder(dependencies, contract.Libraries(), nil)
	if err != nil {
		return nil, err
	}

	deployment := &LinkedDeployment{
		Libraries:        make([]*types.CompiledContract, 0, len(order)),
		LibraryAddresses: make(map[string]common.Address, len(order)),
	}
	for i, name := range order {
		linked, err := knownContracts[name].Link(deployment.LibraryAddresses)
		if err != nil {
			return nil, err
		}
		deployment.Libraries = append(deployment.Libraries, linked)
		deployment.LibraryAddresses[name] = crypto.CreateAddress(deployer, startNonce+uint64(i))
	}

	deployment.Contract, err = contract.Link(deployment.LibraryAddresses)
	if err != nil {
		return nil, err
	}
	return deployment, nil
}

// deploymentQueue is a min-heap of names ordered by their priority rank.
type deploymentQueue struct {
	names []string
	rank  map[string]int
}

func (q deploymentQueue) Len() int           { return len(q.names) }
func (q deploymentQueue) Less(i, j int) bool { return q.rank[q.names[i]] < q.rank[q.names[j]] }
func (q deploymentQueue) Swap(i, j int)      { q.names[i], q.names[j] = q.names[j], q.names[i] }
func (q *deploymentQueue) Push(x any)        { q.names = append(q.names, x.(string)) }
func (q *deploymentQueue) Pop() any {
	last := q.names[len(q.names)-1]
	q.names = q.names[:len(q.names)-1]
	return last
}

// GetDeploymentOrder topologically sorts the dependency graph so every node comes after the nodes it depends on.
// When several nodes are ready at once, nodes listed in predeploys go first in their listed order, then nodes in
// targetContracts in their listed order, then the rest sorted by name. Returns an error (and the partial order) if
// the graph has a cycle.
func GetDeploymentOrder(dependencies map[string][]string, predeploys []string, targetContracts []string) ([]string, error) {
	rank := make(map[string]int, len(dependencies))
	assign := func(names []string) {
		for _, name := range names {
			if _, ok := rank[name]; !ok {
				rank[name] = len(rank)
			}
		}
	}
	assign(predeploys)
	assign(targetContracts)
	rest := make([]string, 0, len(dependencies))
	for name := range dependencies {
		rest = append(rest, name)
	}
	slices.Sort(rest)
	assign(rest)

	queue := &deploymentQueue{rank: rank}
	remaining := make(map[string]int, len(dependencies))
	dependents := make(map[string][]string, len(dependencies))
	for _, name := range rest {
		deps := dependencies[name]
		remaining[name] = len(deps)
		if len(deps) == 0 {
			heap.Push(queue, name)
		}
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	order := make([]string, 0, len(dependencies))
	for queue.Len() > 0 {
		current := heap.Pop(queue).(string)
		order = append(order, current)
		for _, dependent := range dependents[current] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				heap.Push(queue, dependent)
			}
		}
	}

	if len(order) != len(dependencies) {
		return order, fmt.Errorf("circular dependency detected in library dependencies")
	}
	return order, nil
}
