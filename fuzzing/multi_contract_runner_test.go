package fuzzing

import (
	"context"
	"encoding/hex"
	"sync"
	"testing"

	"github.com/crytic/contest/chain/types"
	compilationTypes "github.com/crytic/contest/compilation/types"
	"github.com/crytic/contest/fuzzing/contracts"
	"github.com/crytic/medusa-geth/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linkedFixture describes a project with a library, a test contract linking against it, and contracts which must
// not be picked up as test contracts.
type linkedFixture struct {
	fakes    []*fakeContract
	project  contracts.Contracts
	library  *fakeContract
	linked   *fakeContract
	plain    *fakeContract
	target   *fakeContract
	abstract *compilationTypes.CompiledContract
}

func newLinkedFixture(t *testing.T) *linkedFixture {
	fixture := &linkedFixture{}
	libraryAddress := crypto.CreateAddress(types.DefaultSender, 1)

	fixture.library = newFakeContract(t, "MathLib", nil, "add(uint256,uint256)")
	fixture.library.code = append(append([]byte{0x73}, make([]byte, 20)...), "MathLib"...)

	fixture.linked = newFakeContract(t, "LinkedTest", map[string]fakeHandler{
		"testLibraryDeployed": func(call *fakeCall, args []any) fakeOutcome {
			if contract, ok := call.deployed[libraryAddress]; !ok || contract.name != "MathLib" {
				return revert("library missing")
			}
			return ok()
		},
	}, "testLibraryDeployed()")

	fixture.plain = newFakeContract(t, "PlainTest", map[string]fakeHandler{
		"testFailAlways": func(call *fakeCall, args []any) fakeOutcome { return ok() },
	}, "testFailAlways()")

	fixture.target = newFakeContract(t, "Incrementer", nil, "increment()")

	fixture.abstract = newFakeContract(t, "AbstractTest", nil, "testNothing()").compiled()
	fixture.abstract.InitBytecodeHex = ""

	libraryName := "test/MathLib.sol:MathLib"
	placeholder := compilationTypes.GenerateLibraryPlaceholder(libraryName)
	linkedCompiled := fixture.linked.compiled()
	linkedCompiled.InitBytecodeHex += "__$" + placeholder + "$__"
	linkedCompiled.RuntimeBytecodeHex += "__$" + placeholder + "$__"
	linkedCompiled.LibraryPlaceholders = map[string]string{placeholder: libraryName}

	fixture.fakes = []*fakeContract{fixture.library, fixture.linked, fixture.plain, fixture.target}
	fixture.project = contracts.Contracts{
		fixture.library.compiled(), linkedCompiled, fixture.plain.compiled(), fixture.target.compiled(), fixture.abstract,
	}
	return fixture
}

// TestMultiContractRunnerTestContracts verifies test contracts are selected by entry points and contract filter.
func TestMultiContractRunnerTestContracts(t *testing.T) {
	fixture := newLinkedFixture(t)
	runner := NewMultiContractRunner(fixture.project, nil, types.DefaultSender, nil, testOptions())

	filter, err := NewPatternFilter("", "")
	require.NoError(t, err)
	names := make([]string, 0)
	for _, contract := range runner.TestContracts(filter) {
		names = append(names, contract.Name)
	}
	assert.Equal(t, []string{"LinkedTest", "PlainTest"}, names)

	filter, err = NewPatternFilter("", "^Plain")
	require.NoError(t, err)
	require.Len(t, runner.TestContracts(filter), 1)
	assert.Equal(t, "PlainTest", runner.TestContracts(filter)[0].Name)
}

// TestMultiContractRunnerRun verifies every test contract runs in its own environment, with its libraries linked
// and deployed first.
func TestMultiContractRunnerRun(t *testing.T) {
	fixture := newLinkedFixture(t)
	assert.Equal(t, hex.EncodeToString(fixture.library.code), fixture.project[0].RuntimeBytecodeHex)
	assert.True(t, fixture.project[0].IsLibrary())

	var lock sync.Mutex
	executors := make([]*fakeExecutor, 0)
	newExecutor := func() (Executor, error) {
		lock.Lock()
		defer lock.Unlock()
		executor := newFakeExecutor(fixture.fakes...)
		executors = append(executors, executor)
		return executor, nil
	}

	runner := NewMultiContractRunner(fixture.project, newExecutor, types.DefaultSender, uint256.NewInt(1000), testOptions())
	finished := 0
	runner.Events.TestFinished.Subscribe(func(event TestFinishedEvent) error {
		finished++
		return nil
	})

	filter, err := NewPatternFilter("", "")
	require.NoError(t, err)
	results, err := runner.Run(context.Background(), filter)
	require.NoError(t, err)

	require.Len(t, results, 2)
	require.Len(t, executors, 2)
	assert.Equal(t, 2, finished)

	linked := results["test/LinkedTest.sol:LinkedTest"]
	require.NotNil(t, linked)
	assert.True(t, linked.TestResults["testLibraryDeployed()"].Success, linked.TestResults["testLibraryDeployed()"].Reason())
	assert.Equal(t, runner.RunID, linked.RunID)

	plain := results["test/PlainTest.sol:PlainTest"]
	require.NotNil(t, plain)
	assert.False(t, plain.TestResults["testFailAlways()"].Success)
	assert.Equal(t, runner.RunID, plain.RunID)
}

// TestMultiContractRunnerInvalidOptions verifies invalid options are rejected before anything runs.
func TestMultiContractRunnerInvalidOptions(t *testing.T) {
	options := testOptions()
	options.Workers = 0
	runner := NewMultiContractRunner(nil, nil, types.DefaultSender, nil, options)
	filter, err := NewPatternFilter("", "")
	require.NoError(t, err)
	_, err = runner.Run(context.Background(), filter)
	assert.Error(t, err)
}
