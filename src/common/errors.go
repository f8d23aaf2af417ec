package common

import "fmt"

// CoreErrType enumerates the error conditions that the membership core can
// signal to its callers.
type CoreErrType uint32

const (
	// DuplicateVote means a voter submitted more than one vote for the same
	// proposal.
	DuplicateVote CoreErrType = iota
	// UnknownVoter means the voter is not in the proposal's eligible voter
	// set.
	UnknownVoter
	// StaleProof means a mutation referenced a proof-chain tip other than the
	// current one. The caller must re-vote against the latest state.
	StaleProof
	// InvalidProofChain means a signature or hash-link check failed while
	// verifying a proof chain. State guarded by that chain cannot be trusted.
	InvalidProofChain
	// NotAMember means an operation referenced an identity that is not a
	// member of the target section.
	NotAMember
	// InsufficientMembers means a split, merge, or delivery-group precondition
	// on the section size was not met.
	InsufficientMembers
	// ExpiredProposal means a vote arrived after the proposal was resolved.
	ExpiredProposal
)

// CoreErr is the error type returned by the membership core. It carries an
// error code, the component that raised it, and the offending key.
type CoreErr struct {
	component string
	errType   CoreErrType
	key       string
}

// NewCoreErr ...
func NewCoreErr(component string, errType CoreErrType, key string) CoreErr {
	return CoreErr{
		component: component,
		errType:   errType,
		key:       key,
	}
}

// Error implements the error interface
func (e CoreErr) Error() string {
	m := ""
	switch e.errType {
	case DuplicateVote:
		m = "Duplicate Vote"
	case UnknownVoter:
		m = "Unknown Voter"
	case StaleProof:
		m = "Stale Proof"
	case InvalidProofChain:
		m = "Invalid Proof Chain"
	case NotAMember:
		m = "Not A Member"
	case InsufficientMembers:
		m = "Insufficient Members"
	case ExpiredProposal:
		m = "Expired Proposal"
	}

	return fmt.Sprintf("%s, %s, %s", e.component, e.key, m)
}

// IsCore checks that an error is of type CoreErr and that its code matches the
// provided CoreErrType.
func IsCore(err error, t CoreErrType) bool {
	coreErr, ok := err.(CoreErr)
	return ok && coreErr.errType == t
}
