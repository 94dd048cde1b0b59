package contracts

// Projection exposes the contract projection to black-box tests.
var Projection = projection
