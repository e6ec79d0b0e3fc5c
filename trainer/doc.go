// Package trainer fits a feedforward network to a regression dataset with
// mini-batch Adam on mean squared error. It owns the held-out split, the
// learning rate schedule, plateau reduction and early stopping, and reports
// mean squared and mean absolute error.
package trainer
