package check

// Register returns the admission checks in evaluation order, split by
// stage. The order is part of the contract: the first denying check wins
// and the rest are skipped for that identity.
func Register() (pre, post []Check) {
	pre = []Check{
		NewValidName(),
		NewAltAccount(),
		NewBanned(),
		NewMaintenance(),
	}
	post = []Check{
		NewBannedDevice(),
		NewDeviceSpoof(),
	}
	return pre, post
}
