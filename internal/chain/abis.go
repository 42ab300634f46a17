package chain

// Contract registry names. The indexer scans contracts in this order;
// the list is also the set of valid keys for address configuration.
const (
	ContractPoolCore         = "PoolCore"
	ContractBoostSystem      = "BoostSystem"
	ContractComboPools       = "ComboPools"
	ContractGuidedOracle     = "GuidedOracle"
	ContractOddyssey         = "Oddyssey"
	ContractReputationSystem = "ReputationSystem"
	ContractBITRToken        = "BITRToken"
	ContractFaucet           = "Faucet"
	ContractStaking          = "Staking"
)

// ScanOrder is the fixed contract ordering for log range queries.
var ScanOrder = []string{
	ContractPoolCore,
	ContractBoostSystem,
	ContractComboPools,
	ContractGuidedOracle,
	ContractOddyssey,
	ContractReputationSystem,
	ContractBITRToken,
	ContractFaucet,
	ContractStaking,
}

// contractABIs holds the integration-surface ABI for each contract:
// the events the indexer decodes and the functions the backend calls.
var contractABIs = map[string]string{
	ContractPoolCore: `[
		{"type":"event","name":"PoolCreated","inputs":[
			{"name":"poolId","type":"uint256","indexed":true},
			{"name":"creator","type":"address","indexed":true},
			{"name":"eventStartTime","type":"uint256","indexed":false},
			{"name":"eventEndTime","type":"uint256","indexed":false},
			{"name":"oracleType","type":"uint8","indexed":false},
			{"name":"marketId","type":"string","indexed":false},
			{"name":"marketType","type":"uint8","indexed":false},
			{"name":"league","type":"bytes32","indexed":false},
			{"name":"category","type":"bytes32","indexed":false}]},
		{"type":"event","name":"BetPlaced","inputs":[
			{"name":"poolId","type":"uint256","indexed":true},
			{"name":"bettor","type":"address","indexed":true},
			{"name":"amount","type":"uint256","indexed":false},
			{"name":"isForOutcome","type":"bool","indexed":false}]},
		{"type":"event","name":"LiquidityAdded","inputs":[
			{"name":"poolId","type":"uint256","indexed":true},
			{"name":"provider","type":"address","indexed":true},
			{"name":"amount","type":"uint256","indexed":false}]},
		{"type":"event","name":"PoolSettled","inputs":[
			{"name":"poolId","type":"uint256","indexed":true},
			{"name":"outcome","type":"bytes32","indexed":false},
			{"name":"creatorSideWon","type":"bool","indexed":false},
			{"name":"timestamp","type":"uint256","indexed":false}]},
		{"type":"event","name":"PoolRefunded","inputs":[
			{"name":"poolId","type":"uint256","indexed":true}]},
		{"type":"function","name":"poolCount","stateMutability":"view","inputs":[],
			"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"getPool","stateMutability":"view",
			"inputs":[{"name":"poolId","type":"uint256"}],
			"outputs":[{"name":"pool","type":"tuple","components":[
				{"name":"creator","type":"address"},
				{"name":"predictedOutcome","type":"bytes32"},
				{"name":"odds","type":"uint256"},
				{"name":"creatorStake","type":"uint256"},
				{"name":"totalCreatorSideStake","type":"uint256"},
				{"name":"totalBettorStake","type":"uint256"},
				{"name":"maxBettorStake","type":"uint256"},
				{"name":"maxBetPerUser","type":"uint256"},
				{"name":"eventStartTime","type":"uint256"},
				{"name":"eventEndTime","type":"uint256"},
				{"name":"bettingEndTime","type":"uint256"},
				{"name":"resultTimestamp","type":"uint256"},
				{"name":"league","type":"bytes32"},
				{"name":"category","type":"bytes32"},
				{"name":"region","type":"bytes32"},
				{"name":"homeTeam","type":"bytes32"},
				{"name":"awayTeam","type":"bytes32"},
				{"name":"title","type":"bytes32"},
				{"name":"result","type":"bytes32"},
				{"name":"marketId","type":"string"},
				{"name":"oracleType","type":"uint8"},
				{"name":"marketType","type":"uint8"},
				{"name":"status","type":"uint8"},
				{"name":"flags","type":"uint8"}]}]},
		{"type":"function","name":"isPoolSettled","stateMutability":"view",
			"inputs":[{"name":"poolId","type":"uint256"}],
			"outputs":[{"name":"","type":"bool"}]},
		{"type":"function","name":"settlePool","stateMutability":"nonpayable",
			"inputs":[{"name":"poolId","type":"uint256"},{"name":"outcome","type":"bytes32"}],
			"outputs":[]},
		{"type":"function","name":"settlePoolAutomatically","stateMutability":"nonpayable",
			"inputs":[{"name":"poolId","type":"uint256"}],"outputs":[]}
	]`,

	ContractBoostSystem: `[
		{"type":"event","name":"BoostActivated","inputs":[
			{"name":"poolId","type":"uint256","indexed":true},
			{"name":"tier","type":"uint8","indexed":false},
			{"name":"expiry","type":"uint256","indexed":false}]}
	]`,

	ContractComboPools: `[
		{"type":"event","name":"ComboPoolCreated","inputs":[
			{"name":"comboPoolId","type":"uint256","indexed":true},
			{"name":"creator","type":"address","indexed":true},
			{"name":"legCount","type":"uint8","indexed":false}]},
		{"type":"event","name":"ComboBetPlaced","inputs":[
			{"name":"comboPoolId","type":"uint256","indexed":true},
			{"name":"bettor","type":"address","indexed":true},
			{"name":"amount","type":"uint256","indexed":false}]}
	]`,

	ContractGuidedOracle: `[
		{"type":"event","name":"MarketResolved","inputs":[
			{"name":"marketHash","type":"bytes32","indexed":true},
			{"name":"outcome","type":"bytes","indexed":false}]},
		{"type":"event","name":"SystemAlert","inputs":[
			{"name":"severity","type":"string","indexed":false},
			{"name":"message","type":"string","indexed":false}]},
		{"type":"function","name":"getOutcome","stateMutability":"view",
			"inputs":[{"name":"marketHash","type":"bytes32"}],
			"outputs":[{"name":"isSet","type":"bool"},{"name":"resultData","type":"bytes"}]},
		{"type":"function","name":"oracleBot","stateMutability":"view","inputs":[],
			"outputs":[{"name":"","type":"address"}]},
		{"type":"function","name":"submitOutcome","stateMutability":"nonpayable",
			"inputs":[{"name":"marketHash","type":"bytes32"},{"name":"resultData","type":"bytes"}],
			"outputs":[]}
	]`,

	ContractOddyssey: `[
		{"type":"event","name":"SlipPlaced","inputs":[
			{"name":"player","type":"address","indexed":true},
			{"name":"slipId","type":"uint256","indexed":true},
			{"name":"cycleId","type":"uint256","indexed":false}]},
		{"type":"event","name":"SlipEvaluated","inputs":[
			{"name":"slipId","type":"uint256","indexed":true},
			{"name":"score","type":"uint8","indexed":false},
			{"name":"cycleId","type":"uint256","indexed":false}]},
		{"type":"event","name":"PrizeClaimed","inputs":[
			{"name":"player","type":"address","indexed":true},
			{"name":"slipId","type":"uint256","indexed":false},
			{"name":"amount","type":"uint256","indexed":false}]}
	]`,

	ContractReputationSystem: `[
		{"type":"event","name":"ReputationUpdated","inputs":[
			{"name":"user","type":"address","indexed":true},
			{"name":"newScore","type":"uint256","indexed":false}]},
		{"type":"event","name":"ReputationActionOccurred","inputs":[
			{"name":"user","type":"address","indexed":true},
			{"name":"action","type":"string","indexed":false},
			{"name":"delta","type":"int256","indexed":false}]},
		{"type":"event","name":"UserStatsUpdated","inputs":[
			{"name":"user","type":"address","indexed":true},
			{"name":"totalBets","type":"uint256","indexed":false},
			{"name":"totalPools","type":"uint256","indexed":false}]},
		{"type":"function","name":"getUserReputation","stateMutability":"view",
			"inputs":[{"name":"user","type":"address"}],
			"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"MAX_REPUTATION","stateMutability":"view","inputs":[],
			"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"DEFAULT_REPUTATION","stateMutability":"view","inputs":[],
			"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"MIN_GUIDED_POOL_REPUTATION","stateMutability":"view","inputs":[],
			"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"MIN_OPEN_POOL_REPUTATION","stateMutability":"view","inputs":[],
			"outputs":[{"name":"","type":"uint256"}]},
		{"type":"function","name":"authorizedUpdaters","stateMutability":"view",
			"inputs":[{"name":"updater","type":"address"}],
			"outputs":[{"name":"","type":"bool"}]},
		{"type":"function","name":"updateReputation","stateMutability":"nonpayable",
			"inputs":[{"name":"user","type":"address"},{"name":"score","type":"uint256"}],
			"outputs":[]},
		{"type":"function","name":"batchUpdateReputation","stateMutability":"nonpayable",
			"inputs":[{"name":"users","type":"address[]"},{"name":"scores","type":"uint256[]"}],
			"outputs":[]}
	]`,

	ContractBITRToken: `[
		{"type":"event","name":"Transfer","inputs":[
			{"name":"from","type":"address","indexed":true},
			{"name":"to","type":"address","indexed":true},
			{"name":"value","type":"uint256","indexed":false}]},
		{"type":"function","name":"balanceOf","stateMutability":"view",
			"inputs":[{"name":"account","type":"address"}],
			"outputs":[{"name":"","type":"uint256"}]}
	]`,

	ContractFaucet: `[
		{"type":"event","name":"FaucetClaimed","inputs":[
			{"name":"user","type":"address","indexed":true},
			{"name":"amount","type":"uint256","indexed":false},
			{"name":"timestamp","type":"uint256","indexed":false}]}
	]`,

	ContractStaking: `[
		{"type":"event","name":"Staked","inputs":[
			{"name":"user","type":"address","indexed":true},
			{"name":"amount","type":"uint256","indexed":false},
			{"name":"tier","type":"uint8","indexed":false},
			{"name":"duration","type":"uint256","indexed":false}]},
		{"type":"event","name":"Unstaked","inputs":[
			{"name":"user","type":"address","indexed":true},
			{"name":"amount","type":"uint256","indexed":false},
			{"name":"timestamp","type":"uint256","indexed":false}]},
		{"type":"event","name":"RewardsClaimed","inputs":[
			{"name":"user","type":"address","indexed":true},
			{"name":"amount","type":"uint256","indexed":false},
			{"name":"timestamp","type":"uint256","indexed":false}]}
	]`,
}
